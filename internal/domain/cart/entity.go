// internal/domain/cart/entity.go
package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidProduct is returned for non-positive product ids
	ErrInvalidProduct = errors.New("invalid product id")
	// ErrInvalidQuantity is returned when adding a non-positive quantity or one that takes a line past MaxLineQuantity
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 999")
	// ErrConcurrentUpdate is returned when a mutation keeps losing the optimistic lock
	ErrConcurrentUpdate = errors.New("cart was modified concurrently, please retry")
)

// MaxLineQuantity caps the quantity of a single cart line
const MaxLineQuantity = 999

// Line is one entry of the persisted cart. Identity is ProductID.
type Line struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// EventCartChanged is published after every cart mutation
const EventCartChanged = "cart-changed"

// Event is the cart-changed notification broadcast to every view of a session
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Count     int    `json:"count"`
	Lines     []Line `json:"lines"`
}

// Count returns the total quantity across lines
func Count(lines []Line) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

// ViewLine is a cart line joined with catalog display data
type ViewLine struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name,omitempty"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Available bool            `json:"available"`
}

// View is the display projection of a cart. Its prices are estimates only;
// checkout always reconciles against server pricing.
type View struct {
	Lines          []ViewLine      `json:"lines"`
	Count          int             `json:"count"`
	EstimatedTotal decimal.Decimal `json:"estimatedTotal"`
	Authoritative  bool            `json:"authoritative"`
}

// normalize merges duplicate product ids, drops non-positive quantities and caps each line at MaxLineQuantity, keeping first-seen order
func normalize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 || l.Quantity < 1 {
			continue
		}
		if l.Quantity > MaxLineQuantity {
			l.Quantity = MaxLineQuantity
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity = min(out[i].Quantity+l.Quantity, MaxLineQuantity)
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}
