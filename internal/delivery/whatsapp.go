package delivery

import (
	"SmartNotice/internal/config"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// WhatsAppTransport talks to the UltraMsg HTTP API, one request per number.
type WhatsAppTransport struct {
	cfg    config.WhatsAppConfig
	client *http.Client
}

func NewWhatsAppTransport(cfg config.WhatsAppConfig) *WhatsAppTransport {
	return &WhatsAppTransport{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *WhatsAppTransport) Name() string { return "whatsapp" }

type ultraMsgResponse struct {
	Sent  interface{} `json:"sent"`
	Error interface{} `json:"error"`
}

func (t *WhatsAppTransport) post(ctx context.Context, endpoint string, form url.Values) error {
	form.Set("token", t.cfg.Token)
	u := fmt.Sprintf("%s/%s/messages/%s", t.cfg.APIURL, t.cfg.InstanceID, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body ultraMsgResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %v", resp.StatusCode, body.Error)
	}
	if body.Error != nil {
		return fmt.Errorf("api error: %v", body.Error)
	}
	return nil
}

type mediaPart struct {
	endpoint string
	dataURI  string
	filename string
}

func loadMedia(a Attachment) (mediaPart, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return mediaPart{}, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(a.Name))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}

	endpoint := "document"
	if strings.HasPrefix(mimeType, "image/") {
		endpoint = "image"
	}
	return mediaPart{
		endpoint: endpoint,
		dataURI:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
		filename: a.Name,
	}, nil
}

// Send reports every failed number; numbers that succeeded are not retried.
func (t *WhatsAppTransport) Send(ctx context.Context, msg Message) error {
	if len(msg.Phones) == 0 {
		return nil
	}

	media := make([]mediaPart, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		part, err := loadMedia(a)
		if err != nil {
			return fmt.Errorf("load attachment %s: %w", a.Name, err)
		}
		media = append(media, part)
	}

	text := msg.Subject
	if msg.TextBody != "" {
		text = "*" + msg.Subject + "*\n\n" + msg.TextBody
	}

	var errs error
	for _, number := range msg.Phones {
		if err := t.post(ctx, "chat", url.Values{"to": {number}, "body": {text}}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("chat to %s: %w", number, err))
			continue
		}
		for _, m := range media {
			form := url.Values{"to": {number}, "caption": {msg.Subject}, m.endpoint: {m.dataURI}}
			if m.endpoint == "document" {
				form.Set("filename", m.filename)
			}
			if err := t.post(ctx, m.endpoint, form); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s to %s: %w", m.endpoint, number, err))
			}
		}
	}
	return errs
}
