package delivery

import (
	"SmartNotice/internal/config"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingTransport struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Message
}

func (r *recordingTransport) Name() string { return r.name }

func (r *recordingTransport) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range msg.Attachments {
		if _, err := os.Stat(a.Path); err != nil {
			return err
		}
	}
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingTransport) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

func testConfig(queue int) config.DispatchConfig {
	return config.DispatchConfig{Workers: 2, QueueSize: queue, Timeout: time.Second}
}

func writeAttachment(t *testing.T) Attachment {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timetable.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
	return Attachment{Name: "timetable.pdf", Path: path}
}

func TestDispatcherDeliversToEveryTransport(t *testing.T) {
	failing := &recordingTransport{name: "smtp", err: errors.New("connection refused")}
	ok := &recordingTransport{name: "whatsapp"}
	d := NewDispatcher(testConfig(4), zap.NewNop(), failing, ok)
	d.Start()

	att := writeAttachment(t)
	accepted := d.Dispatch(Message{NoticeID: "n1", Emails: []string{"a@uni.edu"}, Subject: "Exam", Attachments: []Attachment{att}})
	assert.True(t, accepted)

	require.NoError(t, d.Stop(context.Background()))

	assert.Len(t, failing.messages(), 1)
	require.Len(t, ok.messages(), 1)
	assert.Equal(t, "n1", ok.messages()[0].NoticeID)

	_, err := os.Stat(att.Path)
	assert.NoError(t, err, "attachments outlive the dispatch")
}

func TestDispatcherQueueFull(t *testing.T) {
	tr := &recordingTransport{name: "console"}
	d := NewDispatcher(testConfig(1), zap.NewNop(), tr)

	assert.True(t, d.Dispatch(Message{NoticeID: "n1", Emails: []string{"a@uni.edu"}}))

	assert.False(t, d.Dispatch(Message{NoticeID: "n2", Emails: []string{"b@uni.edu"}}))

	d.Start()
	require.NoError(t, d.Stop(context.Background()))
	require.Len(t, tr.messages(), 1)
	assert.Equal(t, "n1", tr.messages()[0].NoticeID)
}

func TestDispatchAfterStop(t *testing.T) {
	d := NewDispatcher(testConfig(1), zap.NewNop())
	d.Start()
	require.NoError(t, d.Stop(context.Background()))
	assert.False(t, d.Dispatch(Message{NoticeID: "late"}))
	assert.NoError(t, d.Stop(context.Background()))
}

func TestNewEmailTransport(t *testing.T) {
	logger := zap.NewNop()
	assert.Equal(t, "console", NewEmailTransport(config.EmailConfig{Transport: config.TransportConsole}, logger).Name())
	assert.Equal(t, "smtp", NewEmailTransport(config.EmailConfig{Transport: config.TransportSMTP, SMTPHost: "localhost", SMTPPort: 25}, logger).Name())
	assert.Equal(t, "resend", NewEmailTransport(config.EmailConfig{Transport: config.TransportResend, ResendAPIKey: "re_x"}, logger).Name())
}

func TestTransportsSkipWithoutRecipients(t *testing.T) {
	ctx := context.Background()
	msg := Message{NoticeID: "n1", Subject: "x"}
	assert.NoError(t, NewSMTPTransport(config.EmailConfig{SMTPHost: "127.0.0.1", SMTPPort: 1}).Send(ctx, msg))
	assert.NoError(t, NewConsoleTransport(zap.NewNop()).Send(ctx, msg))
	assert.NoError(t, NewWhatsAppTransport(config.WhatsAppConfig{}).Send(ctx, msg))
}

func TestPlainText(t *testing.T) {
	got := PlainText("<h2>Exam  schedule</h2><p>Hall <b>B</b> &amp; C</p><ul><li>Mon</li><li>Tue</li></ul>")
	assert.Equal(t, "Exam schedule\nHall B & C\nMon\nTue", got)
	assert.Equal(t, "plain", PlainText("plain"))
}
