// internal/pkg/alert/service.go
package alert

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/config"
)

var alertTemplate = template.Must(template.New("alert").Parse(`<h2>{{.Subject}}</h2>
<table>
  <tr><td>Type</td><td>{{.Type}}</td></tr>
  <tr><td>Order</td><td>{{.OrderID}}</td></tr>
  <tr><td>Session</td><td>{{.SessionID}}</td></tr>
  <tr><td>Raised at</td><td>{{.RaisedAt.Format "2006-01-02T15:04:05Z07:00"}}</td></tr>
</table>
<pre>{{.Detail}}</pre>
`))

// Service sends ops alerts by email, or only logs them when no provider is configured
type Service struct {
	config config.AlertConfig
	client *http.Client
	logger logrus.FieldLogger
}

// NewService creates a new alert service
func NewService(cfg config.AlertConfig, logger logrus.FieldLogger) *Service {
	return &Service{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Notify logs the alert and delivers it through the configured provider
func (s *Service) Notify(ctx context.Context, alert Alert) error {
	if alert.RaisedAt.IsZero() {
		alert.RaisedAt = time.Now().UTC()
	}

	s.logger.WithFields(logrus.Fields{
		"alert_type": alert.Type,
		"order_id":   alert.OrderID,
		"session_id": alert.SessionID,
	}).Error(alert.Subject)

	if s.config.Provider == "none" || len(s.config.To) == 0 {
		return nil
	}

	var body bytes.Buffer
	if err := alertTemplate.Execute(&body, alert); err != nil {
		return fmt.Errorf("failed to render alert: %w", err)
	}

	msg := &message{
		To:          s.config.To,
		Subject:     fmt.Sprintf("[storefront] %s", alert.Subject),
		HTMLContent: body.String(),
	}

	switch s.config.Provider {
	case "smtp":
		return s.sendSMTP(msg)
	case "resend":
		return s.sendResend(ctx, msg)
	default:
		return fmt.Errorf("unsupported alert provider: %s", s.config.Provider)
	}
}

type message struct {
	To          []string
	Subject     string
	HTMLContent string
}

func (s *Service) from() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}
	return s.config.FromEmail
}
