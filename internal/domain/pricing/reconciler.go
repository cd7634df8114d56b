// internal/domain/pricing/reconciler.go
package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-gateway/internal/pkg/money"
)

var (
	// ErrEmptyCart is returned when there is nothing to price
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInconsistentSummary is returned when the server summary does not add up
	ErrInconsistentSummary = errors.New("inconsistent order summary")
)

// Caller is the subset of the commerce client the reconciler needs
type Caller interface {
	DoJSON(ctx context.Context, method, path, token string, body, out interface{}) error
}

// Reconciler obtains authoritative pricing for a cart. Summaries are never cached.
type Reconciler struct {
	api      Caller
	validate *validator.Validate
}

// NewReconciler creates a new price reconciliation client
func NewReconciler(api Caller) *Reconciler {
	return &Reconciler{
		api:      api,
		validate: validator.New(),
	}
}

// Calculate prices items on the server and checks that the answer is self-consistent
func (r *Reconciler) Calculate(ctx context.Context, token string, items []Item) (*OrderSummary, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	var summary OrderSummary
	if err := r.api.DoJSON(ctx, http.MethodPost, "/orders/calculate", token, calculateRequest{OrderItems: items}, &summary); err != nil {
		return nil, fmt.Errorf("price calculation failed: %w", err)
	}

	if err := r.validate.Struct(&summary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentSummary, err)
	}
	if err := CheckConsistency(&summary, items); err != nil {
		return nil, err
	}

	return &summary, nil
}

// CheckConsistency verifies, in minor units, that every line total equals
// unitPrice*quantity, that the grand total equals the sum of line totals, and
// that the summary prices exactly the requested product/quantity pairs.
func CheckConsistency(summary *OrderSummary, requested []Item) error {
	want := make(map[int64]int, len(requested))
	for _, it := range requested {
		want[it.ProductID] += it.Quantity
	}

	var sum int64
	seen := make(map[int64]bool, len(summary.OrderItems))
	for _, line := range summary.OrderItems {
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: negative unit price for product %d", ErrInconsistentSummary, line.ProductID)
		}
		expected := money.ToMinorUnits(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		got := money.ToMinorUnits(line.TotalAmount)
		if expected != got {
			return fmt.Errorf("%w: product %d line total %s != %s x %d",
				ErrInconsistentSummary, line.ProductID, line.TotalAmount, line.UnitPrice, line.Quantity)
		}
		if seen[line.ProductID] {
			return fmt.Errorf("%w: product %d priced twice", ErrInconsistentSummary, line.ProductID)
		}
		seen[line.ProductID] = true
		if qty, ok := want[line.ProductID]; !ok || qty != line.Quantity {
			return fmt.Errorf("%w: product %d quantity %d was not requested", ErrInconsistentSummary, line.ProductID, line.Quantity)
		}
		sum += got
	}

	if len(seen) != len(want) {
		return fmt.Errorf("%w: %d products requested, %d priced", ErrInconsistentSummary, len(want), len(seen))
	}
	if total := summary.TotalMinor(); total != sum {
		return fmt.Errorf("%w: total %s does not match sum of lines", ErrInconsistentSummary, summary.TotalAmount)
	}
	if sum <= 0 {
		return fmt.Errorf("%w: total must be positive", ErrInconsistentSummary)
	}

	return nil
}
