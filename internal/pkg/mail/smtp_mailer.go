package mail

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/gofiber/fiber/v2/log"
)

// SMTPSender delivers messages over SMTP when no notification service is set.
type SMTPSender struct {
	Host     string
	Port     string
	Username string
	Password string

	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.Username != "" && s.Password != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)
	send := s.send
	if send == nil {
		send = smtp.SendMail
	}

	err := send(addr, auth, msg.From, []string{msg.To}, buildMIME(msg))
	if err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return err
	}
	log.Infof("[Mail] Email sent to %s via %s", msg.To, addr)
	return nil
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue keeps a value on a single header line.
func headerValue(v string) string {
	return strings.TrimSpace(headerBreaks.Replace(v))
}

func buildMIME(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(msg.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject)))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", headerValue(msg.ReplyTo))
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Text)
	return []byte(b.String())
}
