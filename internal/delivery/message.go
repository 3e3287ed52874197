// Package delivery hands published notices to outbound transports. Sends run
// on background workers; callers never wait for a transport.
package delivery

import (
	"context"
	"errors"
)

// ErrQueueFull is reported when the dispatch queue has no room.
var ErrQueueFull = errors.New("dispatch queue full")

// Attachment is a file on local disk. Transports only read it; the notice
// owns its lifetime.
type Attachment struct {
	Name string
	Path string
}

type Message struct {
	NoticeID    string
	Emails      []string
	Phones      []string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

func (m Message) HasRecipients() bool {
	return len(m.Emails) > 0 || len(m.Phones) > 0
}

// Transport sends a message over a single channel. A transport ignores
// messages with no recipients for its channel.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
