package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/httpx"
)

func TestHTTPSenderPostsJSON(t *testing.T) {
	var got Message
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := &HTTPSender{ServiceURL: srv.URL, APIKey: "ek", HTTPClient: httpx.NewClient(time.Second)}
	err := s.Send(context.Background(), Message{
		To:      "support@h-factor.co.uk",
		From:    "webhooks@h-factor.co.uk",
		Subject: "hello",
		Text:    "body",
		ReplyTo: "ada@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer ek", auth)
	assert.Equal(t, "support@h-factor.co.uk", got.To)
	assert.Equal(t, "ada@example.com", got.ReplyTo)
}

func TestHTTPSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := &HTTPSender{ServiceURL: srv.URL, APIKey: "ek", HTTPClient: httpx.NewClient(time.Second)}
	err := s.Send(context.Background(), Message{To: "a@b.co"})

	var statusErr *httpx.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	s := &SMTPSender{
		Host: "smtp.example.com",
		Port: "2525",
		send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr = addr
			gotMsg = msg
			assert.Nil(t, a)
			assert.Equal(t, []string{"contact@hfactor.co.uk"}, to)
			return nil
		},
	}

	err := s.Send(context.Background(), Message{
		To:      "contact@hfactor.co.uk",
		From:    "noreply@hfactor.co.uk",
		Subject: "New Contact",
		Text:    "hi",
		ReplyTo: "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.True(t, strings.Contains(string(gotMsg), "Reply-To: ada@example.com\r\n"))
	assert.True(t, strings.HasSuffix(string(gotMsg), "\r\n\r\nhi"))
}

func TestBuildMIMEKeepsHeadersOnOneLine(t *testing.T) {
	msg := string(buildMIME(Message{
		To:      "contact@hfactor.co.uk",
		From:    "noreply@hfactor.co.uk",
		Subject: "New Contact: Eve\r\nBcc: victim@example.com\r\nX-Injected: 1 from Acme",
		Text:    "hi",
	}))

	headers, _, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	lines := strings.Split(headers, "\r\n")
	for _, line := range lines {
		assert.False(t, strings.HasPrefix(line, "Bcc:"), line)
		assert.False(t, strings.HasPrefix(line, "X-Injected:"), line)
	}
	assert.Len(t, lines, 5)
	assert.Contains(t, headers, "Subject: New Contact: Eve Bcc: victim@example.com X-Injected: 1 from Acme\r\n")
}

func TestBuildMIMEEncodesNonASCIISubject(t *testing.T) {
	msg := string(buildMIME(Message{To: "a@b.co", From: "c@d.co", Subject: "🎉 New Subscription: a@b.co"}))

	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.NotContains(t, msg, "🎉")
}

func TestNewSenderFromConfig(t *testing.T) {
	assert.Nil(t, NewSenderFromConfig(&config.Config{}))

	s := NewSenderFromConfig(&config.Config{SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: "25"}})
	assert.IsType(t, &SMTPSender{}, s)

	s = NewSenderFromConfig(&config.Config{
		EmailServiceURL:   "https://mail.example.com",
		EmailAPIKey:       "ek",
		HTTPClientTimeout: time.Second,
		SMTP:              config.SMTPConfig{Host: "smtp.example.com"},
	})
	assert.IsType(t, &HTTPSender{}, s)
}
