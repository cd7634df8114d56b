package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-gateway/internal/config"
)

func TestNotify_NoneProviderOnlyLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	svc := NewService(config.AlertConfig{Provider: "none", To: []string{"ops@example.com"}}, logger)

	err := svc.Notify(context.Background(), Alert{
		Type:    AlertTypeFinalizationPending,
		Subject: "order 42 paid but not finalized",
		OrderID: "42",
	})
	require.NoError(t, err)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "42", hook.LastEntry().Data["order_id"])
}

func TestNotify_Resend(t *testing.T) {
	var got resendEmailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	svc := NewService(config.AlertConfig{
		Provider:  "resend",
		To:        []string{"ops@example.com"},
		FromEmail: "alerts@example.com",
		FromName:  "Storefront",
		APIKey:    "re_key",
		APIURL:    srv.URL,
	}, logger)

	err := svc.Notify(context.Background(), Alert{
		Type:    AlertTypeFinalizationGaveUp,
		Subject: "giving up on order 7",
		OrderID: "7",
		Detail:  "status update kept failing",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ops@example.com"}, got.To)
	assert.Equal(t, "Storefront <alerts@example.com>", got.From)
	assert.Contains(t, got.Subject, "giving up on order 7")
	assert.Contains(t, got.HTML, "status update kept failing")
}

func TestNotify_ResendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	svc := NewService(config.AlertConfig{
		Provider: "resend", To: []string{"ops@example.com"}, APIKey: "k", APIURL: srv.URL,
	}, logger)

	err := svc.Notify(context.Background(), Alert{Subject: "x"})
	assert.Error(t, err)
}
