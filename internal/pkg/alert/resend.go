// internal/pkg/alert/resend.go
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// resendEmailRequest is the Resend API payload
type resendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// sendResend sends the alert using the Resend API
func (s *Service) sendResend(ctx context.Context, msg *message) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("Resend API key not configured")
	}

	jsonData, err := json.Marshal(resendEmailRequest{
		From:    s.from(),
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTMLContent,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal Resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create Resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Resend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("Resend API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
