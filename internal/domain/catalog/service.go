// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/pkg/commerce"
)

// ErrProductNotFound is returned when the catalog has no such product
var ErrProductNotFound = errors.New("product not found")

// Caller is the subset of the commerce client the catalog needs
type Caller interface {
	DoJSON(ctx context.Context, method, path, token string, body, out interface{}) error
}

// Service fetches products from the commerce API with a short-lived Redis cache
type Service struct {
	api      Caller
	redis    *redis.Client
	cacheTTL time.Duration
	validate *validator.Validate
	logger   logrus.FieldLogger
}

// NewService creates a new catalog service
func NewService(api Caller, redisClient *redis.Client, cacheTTL time.Duration, logger logrus.FieldLogger) *Service {
	return &Service{
		api:      api,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		validate: validator.New(),
		logger:   logger,
	}
}

func cacheKey(productID int64) string {
	return fmt.Sprintf("storefront:catalog:product:%d", productID)
}

// Product returns display information for a product
func (s *Service) Product(ctx context.Context, productID int64) (*Product, error) {
	key := cacheKey(productID)

	if data, err := s.redis.Get(ctx, key).Bytes(); err == nil {
		var cached Product
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.logger.WithField("product_id", productID).Warn("discarding unreadable catalog cache entry")
	} else if !errors.Is(err, redis.Nil) {
		s.logger.WithError(err).Warn("catalog cache read failed")
	}

	var product Product
	err := s.api.DoJSON(ctx, http.MethodGet, fmt.Sprintf("/products/%d", productID), "", nil, &product)
	if err != nil {
		var apiErr *commerce.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}

	if err := s.validate.Struct(&product); err != nil {
		return nil, fmt.Errorf("invalid product %d from catalog: %w", productID, err)
	}

	if data, err := json.Marshal(&product); err == nil {
		if err := s.redis.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			s.logger.WithError(err).Warn("catalog cache write failed")
		}
	}

	return &product, nil
}
