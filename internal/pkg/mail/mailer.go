package mail

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2/log"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/httpx"
)

// Message is a plain-text notification email.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// Sender delivers notification emails.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPSender posts messages as JSON to a notification service using a bearer key.
type HTTPSender struct {
	ServiceURL string
	APIKey     string
	HTTPClient *http.Client
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if err := httpx.PostJSON(ctx, s.HTTPClient, s.ServiceURL, s.APIKey, msg); err != nil {
		log.Errorf("[Mail] Notification to %s failed: %v", msg.To, err)
		return err
	}
	log.Infof("[Mail] Notification sent to %s: %s", msg.To, msg.Subject)
	return nil
}

// NewSenderFromConfig prefers the notification service and falls back to SMTP.
// It returns nil when neither transport is configured.
func NewSenderFromConfig(cfg *config.Config) Sender {
	if cfg.EmailConfigured() {
		return &HTTPSender{
			ServiceURL: cfg.EmailServiceURL,
			APIKey:     cfg.EmailAPIKey,
			HTTPClient: httpx.NewClient(cfg.HTTPClientTimeout),
		}
	}
	if cfg.SMTP.Host != "" {
		return &SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}
	}
	return nil
}
