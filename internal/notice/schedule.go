package notice

import (
	"SmartNotice/internal/apperr"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// publishAt computes the scheduled instant of s in loc. ok is false when
// scheduling is not requested. A time of day only counts when ScheduleTime
// is set; otherwise the date is read as midnight.
func publishAt(s Schedule, loc *time.Location) (at time.Time, ok bool, err error) {
	if !s.ScheduleDate {
		return time.Time{}, false, nil
	}
	date := strings.TrimSpace(s.Date)
	if date == "" {
		return time.Time{}, false, apperr.Validation("date", "required when schedule_date is set")
	}
	clock := strings.TrimSpace(s.Time)
	if s.ScheduleTime && clock != "" {
		at, err = time.ParseInLocation(dateTimeLayout, date+" "+clock, loc)
		if err != nil {
			return time.Time{}, false, apperr.Validation("time", "must be YYYY-MM-DD with HH:MM")
		}
		return at, true, nil
	}
	at, err = time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, false, apperr.Validation("date", "must be YYYY-MM-DD")
	}
	return at, true, nil
}

// resolveStatus applies the schedule to the requested status. A schedule in
// the future yields scheduled; one at or before now yields published.
func resolveStatus(requested Status, s Schedule, now time.Time, loc *time.Location) (Status, *time.Time, error) {
	at, ok, err := publishAt(s, loc)
	if err != nil {
		return "", nil, err
	}
	if ok {
		if at.After(now) {
			at = at.UTC()
			return StatusScheduled, &at, nil
		}
		return StatusPublished, nil, nil
	}
	if requested == StatusScheduled {
		return "", nil, apperr.Validation("status", "scheduled notices need schedule_date and date")
	}
	if requested == "" {
		return StatusDraft, nil, nil
	}
	return requested, nil, nil
}
