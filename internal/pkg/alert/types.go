// internal/pkg/alert/types.go
package alert

import (
	"context"
	"time"
)

// AlertType classifies ops alerts
type AlertType string

const (
	AlertTypeFinalizationPending AlertType = "finalization_pending"
	AlertTypeFinalizationGaveUp  AlertType = "finalization_gave_up"
	AlertTypePaymentAmbiguous    AlertType = "payment_ambiguous"
)

// Alert is a single ops notification
type Alert struct {
	Type      AlertType
	Subject   string
	OrderID   string
	SessionID string
	Detail    string
	RaisedAt  time.Time
}

// Notifier delivers ops alerts
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}
