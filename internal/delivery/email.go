package delivery

import (
	"SmartNotice/internal/config"
	"context"
	"fmt"
	"os"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// NewEmailTransport picks the email transport named by EMAIL_TRANSPORT.
func NewEmailTransport(cfg config.EmailConfig, logger *zap.Logger) Transport {
	switch cfg.Transport {
	case config.TransportSMTP:
		return NewSMTPTransport(cfg)
	case config.TransportResend:
		return NewResendTransport(cfg)
	default:
		return NewConsoleTransport(logger)
	}
}

// SMTPTransport sends one message with every recipient in Bcc.
type SMTPTransport struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPTransport(cfg config.EmailConfig) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.SMTPFrom,
	}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", t.from)
	m.SetHeader("Bcc", msg.Emails...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)
	for _, a := range msg.Attachments {
		m.Attach(a.Path, gomail.Rename(a.Name))
	}
	return m
}

// Send gives up waiting when ctx ends; gomail itself has no cancellation so
// the dial may still complete in the background.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if len(msg.Emails) == 0 {
		return nil
	}
	m := t.buildMessage(msg)

	errCh := make(chan error, 1)
	go func() { errCh <- t.dialer.DialAndSend(m) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send to %d recipients: %w", len(msg.Emails), err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

const resendBatchSize = 50

type ResendTransport struct {
	client *resend.Client
	from   string
}

func NewResendTransport(cfg config.EmailConfig) *ResendTransport {
	return &ResendTransport{client: resend.NewClient(cfg.ResendAPIKey), from: cfg.ResendFrom}
}

func (t *ResendTransport) Name() string { return "resend" }

func (t *ResendTransport) attachments(msg Message) ([]*resend.Attachment, error) {
	out := make([]*resend.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", a.Name, err)
		}
		out = append(out, &resend.Attachment{Content: data, Filename: a.Name})
	}
	return out, nil
}

// Send splits the recipient list into batches the API accepts.
func (t *ResendTransport) Send(ctx context.Context, msg Message) error {
	if len(msg.Emails) == 0 {
		return nil
	}
	files, err := t.attachments(msg)
	if err != nil {
		return err
	}
	for start := 0; start < len(msg.Emails); start += resendBatchSize {
		end := min(start+resendBatchSize, len(msg.Emails))
		req := &resend.SendEmailRequest{
			From:        t.from,
			To:          []string{t.from},
			Bcc:         msg.Emails[start:end],
			Subject:     msg.Subject,
			Html:        msg.HTMLBody,
			Text:        msg.TextBody,
			Attachments: files,
		}
		if _, err := t.client.Emails.SendWithContext(ctx, req); err != nil {
			return fmt.Errorf("resend batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// ConsoleTransport logs messages instead of sending them.
type ConsoleTransport struct {
	logger *zap.Logger
}

func NewConsoleTransport(logger *zap.Logger) *ConsoleTransport {
	return &ConsoleTransport{logger: logger}
}

func (t *ConsoleTransport) Name() string { return "console" }

func (t *ConsoleTransport) Send(_ context.Context, msg Message) error {
	if len(msg.Emails) == 0 {
		return nil
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Name)
	}
	t.logger.Info("email",
		zap.String("notice_id", msg.NoticeID),
		zap.Strings("bcc", msg.Emails),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.TextBody),
		zap.Strings("attachments", names),
	)
	return nil
}
