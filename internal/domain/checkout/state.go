// internal/domain/checkout/state.go
package checkout

import (
	"fmt"
	"time"
)

// StateName identifies a checkout state
type StateName string

const (
	StateIdle            StateName = "IDLE"
	StateValidatingInput StateName = "VALIDATING_INPUT"
	StateReconciling     StateName = "RECONCILING"
	StateCreatingOrder   StateName = "CREATING_ORDER"
	StateAwaitingPayment StateName = "AWAITING_PAYMENT"
	StateFinalizing      StateName = "FINALIZING"
	StateSucceeded       StateName = "SUCCEEDED"
	StateFailed          StateName = "FAILED"
)

// IsTerminal reports whether a new submit may start from this state
func (s StateName) IsTerminal() bool {
	return s == StateIdle || s == StateSucceeded || s == StateFailed
}

// String representation (for logging)
func (s StateName) String() string {
	return string(s)
}

// State is one case of the checkout state union. Only the types in this file implement it.
type State interface {
	Name() StateName
	isState()
}

type (
	// Idle means no checkout has been attempted
	Idle struct{}
	// ValidatingInput checks the shipping form, cart and credentials locally
	ValidatingInput struct{}
	// Reconciling obtains the authoritative order summary
	Reconciling struct{}
	// CreatingOrder creates the PENDING order
	CreatingOrder struct{}
	// AwaitingPayment holds while the intent is obtained and confirmed
	AwaitingPayment struct{ OrderID string }
	// Finalizing records the payment outcome on the order
	Finalizing struct{ OrderID string }
	// Succeeded is a paid, finalized order
	Succeeded struct{ OrderID string }
	// Failed carries the error kind and a shopper-facing reason
	Failed struct {
		Kind    ErrorKind
		Reason  string
		OrderID string
	}
)

func (Idle) Name() StateName            { return StateIdle }
func (ValidatingInput) Name() StateName { return StateValidatingInput }
func (Reconciling) Name() StateName     { return StateReconciling }
func (CreatingOrder) Name() StateName   { return StateCreatingOrder }
func (AwaitingPayment) Name() StateName { return StateAwaitingPayment }
func (Finalizing) Name() StateName      { return StateFinalizing }
func (Succeeded) Name() StateName       { return StateSucceeded }
func (Failed) Name() StateName          { return StateFailed }

func (Idle) isState()            {}
func (ValidatingInput) isState() {}
func (Reconciling) isState()     {}
func (CreatingOrder) isState()   {}
func (AwaitingPayment) isState() {}
func (Finalizing) isState()      {}
func (Succeeded) isState()       {}
func (Failed) isState()          {}

var transitions = map[StateName][]StateName{
	StateIdle:            {StateValidatingInput},
	StateSucceeded:       {StateValidatingInput},
	StateFailed:          {StateValidatingInput},
	StateValidatingInput: {StateReconciling, StateFailed},
	StateReconciling:     {StateCreatingOrder, StateFailed},
	StateCreatingOrder:   {StateAwaitingPayment, StateFailed},
	StateAwaitingPayment: {StateFinalizing, StateFailed},
	StateFinalizing:      {StateSucceeded, StateFailed},
}

// CanTransition reports whether moving from one state to another is legal
func CanTransition(from, to State) bool {
	for _, next := range transitions[from.Name()] {
		if next == to.Name() {
			return true
		}
	}
	return false
}

// Snapshot is the persisted, pollable form of a state
type Snapshot struct {
	State     StateName `json:"state"`
	OrderID   string    `json:"orderId,omitempty"`
	Kind      ErrorKind `json:"kind,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	AttemptID string    `json:"attemptId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SnapshotOf flattens a state
func SnapshotOf(s State, attemptID string, at time.Time) Snapshot {
	snap := Snapshot{State: s.Name(), AttemptID: attemptID, UpdatedAt: at}
	switch v := s.(type) {
	case AwaitingPayment:
		snap.OrderID = v.OrderID
	case Finalizing:
		snap.OrderID = v.OrderID
	case Succeeded:
		snap.OrderID = v.OrderID
	case Failed:
		snap.OrderID = v.OrderID
		snap.Kind = v.Kind
		snap.Reason = v.Reason
	}
	return snap
}

// Restore rebuilds the state a snapshot was taken from
func (s Snapshot) Restore() (State, error) {
	switch s.State {
	case StateIdle, "":
		return Idle{}, nil
	case StateValidatingInput:
		return ValidatingInput{}, nil
	case StateReconciling:
		return Reconciling{}, nil
	case StateCreatingOrder:
		return CreatingOrder{}, nil
	case StateAwaitingPayment:
		return AwaitingPayment{OrderID: s.OrderID}, nil
	case StateFinalizing:
		return Finalizing{OrderID: s.OrderID}, nil
	case StateSucceeded:
		return Succeeded{OrderID: s.OrderID}, nil
	case StateFailed:
		return Failed{Kind: s.Kind, Reason: s.Reason, OrderID: s.OrderID}, nil
	default:
		return nil, fmt.Errorf("unknown checkout state %q", s.State)
	}
}
