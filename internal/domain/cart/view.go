// internal/domain/cart/view.go
package cart

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-gateway/internal/domain/catalog"
	"github.com/your-org/storefront-gateway/internal/pkg/money"
)

// ProductSource resolves display data for a product
type ProductSource interface {
	Product(ctx context.Context, productID int64) (*catalog.Product, error)
}

// View joins the cart with catalog display data. Lines whose product cannot be
// resolved are kept and flagged unavailable; they add nothing to the estimate.
func (s *Store) View(ctx context.Context, sessionID string, products ProductSource) (*View, error) {
	lines, err := s.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	view := &View{
		Lines:          make([]ViewLine, 0, len(lines)),
		Count:          Count(lines),
		EstimatedTotal: decimal.Zero,
	}

	for _, l := range lines {
		vl := ViewLine{ProductID: l.ProductID, Quantity: l.Quantity}

		p, err := products.Product(ctx, l.ProductID)
		if err != nil {
			s.logger.WithError(err).WithField("product_id", l.ProductID).Warn("cart line without catalog data")
		} else {
			vl.Name = p.Name
			vl.Image = p.Image
			vl.Price = p.Price
			vl.LineTotal = money.LineTotal(p.Price, l.Quantity)
			vl.Available = true
			view.EstimatedTotal = view.EstimatedTotal.Add(vl.LineTotal)
		}

		view.Lines = append(view.Lines, vl)
	}

	return view, nil
}
