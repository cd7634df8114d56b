// internal/pkg/alert/smtp.go
package alert

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
)

// sendSMTP sends the alert through a plain SMTP relay
func (s *Service) sendSMTP(msg *message) error {
	if s.config.SMTPHost == "" || s.config.SMTPUser == "" {
		return fmt.Errorf("SMTP configuration incomplete: missing host or username")
	}

	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPass, s.config.SMTPHost)

	var buf bytes.Buffer
	headers := [][2]string{
		{"From", s.from()},
		{"To", strings.Join(msg.To, ", ")},
		{"Subject", msg.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="utf-8"`},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
	}
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTMLContent)

	serverAddr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	if err := smtp.SendMail(serverAddr, auth, s.config.FromEmail, msg.To, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send SMTP alert: %w", err)
	}
	return nil
}
