package notice

import (
	"SmartNotice/internal/apperr"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAt(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      Schedule
		want    time.Time
		ok      bool
		invalid string
	}{
		{name: "not requested", in: Schedule{Date: "2025-03-12"}},
		{name: "date only", in: Schedule{ScheduleDate: true, Date: "2025-03-12"}, want: time.Date(2025, 3, 12, 0, 0, 0, 0, loc), ok: true},
		{name: "date and time", in: Schedule{ScheduleDate: true, ScheduleTime: true, Date: "2025-03-12", Time: "14:30"}, want: time.Date(2025, 3, 12, 14, 30, 0, 0, loc), ok: true},
		{name: "time ignored without flag", in: Schedule{ScheduleDate: true, Date: "2025-03-12", Time: "14:30"}, want: time.Date(2025, 3, 12, 0, 0, 0, 0, loc), ok: true},
		{name: "flag without time is midnight", in: Schedule{ScheduleDate: true, ScheduleTime: true, Date: "2025-03-12"}, want: time.Date(2025, 3, 12, 0, 0, 0, 0, loc), ok: true},
		{name: "missing date", in: Schedule{ScheduleDate: true}, invalid: "date"},
		{name: "malformed date", in: Schedule{ScheduleDate: true, Date: "12/03/2025"}, invalid: "date"},
		{name: "malformed time", in: Schedule{ScheduleDate: true, ScheduleTime: true, Date: "2025-03-12", Time: "2pm"}, invalid: "time"},
		{name: "impossible date", in: Schedule{ScheduleDate: true, Date: "2025-02-30"}, invalid: "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := publishAt(tt.in, loc)
			if tt.invalid != "" {
				var ve *apperr.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.invalid, ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestResolveStatus(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	future := Schedule{ScheduleDate: true, ScheduleTime: true, Date: "2025-03-11", Time: "09:00"}
	past := Schedule{ScheduleDate: true, Date: "2025-03-01"}

	st, at, err := resolveStatus(StatusDraft, future, now, loc)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, st)
	require.NotNil(t, at)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), *at)

	st, at, err = resolveStatus(StatusScheduled, past, now, loc)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, st)
	assert.Nil(t, at)

	st, _, err = resolveStatus("", Schedule{}, now, loc)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, st)

	st, _, err = resolveStatus(StatusPublished, Schedule{}, now, loc)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, st)

	_, _, err = resolveStatus(StatusScheduled, Schedule{}, now, loc)
	assert.True(t, apperr.IsValidation(err))
}
