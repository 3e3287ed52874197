package delivery

import (
	"SmartNotice/internal/config"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppTransport(t *testing.T) {
	var mu sync.Mutex
	calls := map[string][]string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		calls[r.URL.Path] = append(calls[r.URL.Path], r.PostForm.Get("to"))
		mu.Unlock()

		assert.Equal(t, "tok", r.PostForm.Get("token"))
		if r.PostForm.Get("to") == "+910000000000" {
			_, _ = w.Write([]byte(`{"error":"invalid number"}`))
			return
		}
		_, _ = w.Write([]byte(`{"sent":"true"}`))
	}))
	defer srv.Close()

	tr := NewWhatsAppTransport(config.WhatsAppConfig{InstanceID: "inst1", Token: "tok", APIURL: srv.URL})
	att := writeAttachment(t)

	err := tr.Send(context.Background(), Message{
		NoticeID:    "n1",
		Phones:      []string{"+919999999999", "+910000000000"},
		Subject:     "Holiday",
		TextBody:    "Campus closed",
		Attachments: []Attachment{att},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "+910000000000")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"+919999999999", "+910000000000"}, calls["/inst1/messages/chat"])
	assert.Equal(t, []string{"+919999999999"}, calls["/inst1/messages/document"])
}

func TestWhatsAppTransportMissingAttachment(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"sent":"true"}`))
	}))
	defer srv.Close()

	att := writeAttachment(t)
	require.NoError(t, os.Remove(att.Path))

	tr := NewWhatsAppTransport(config.WhatsAppConfig{InstanceID: "inst1", Token: "tok", APIURL: srv.URL})
	err := tr.Send(context.Background(), Message{
		NoticeID:    "n1",
		Phones:      []string{"+919999999999"},
		Subject:     "Holiday",
		Attachments: []Attachment{att},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "timetable.pdf")
	assert.Zero(t, calls)
}
