// internal/app/services.go
package app

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/config"
	"github.com/your-org/storefront-gateway/internal/domain/auth"
	"github.com/your-org/storefront-gateway/internal/domain/cart"
	"github.com/your-org/storefront-gateway/internal/domain/catalog"
	"github.com/your-org/storefront-gateway/internal/domain/checkout"
	"github.com/your-org/storefront-gateway/internal/domain/order"
	"github.com/your-org/storefront-gateway/internal/domain/payment"
	"github.com/your-org/storefront-gateway/internal/domain/pricing"
	"github.com/your-org/storefront-gateway/internal/domain/session"
	"github.com/your-org/storefront-gateway/internal/pkg/alert"
	jwtauth "github.com/your-org/storefront-gateway/internal/pkg/auth"
	"github.com/your-org/storefront-gateway/internal/pkg/commerce"
	"gorm.io/gorm"
)

// Services holds every domain service of the gateway, wired once per process
type Services struct {
	Sessions *session.Store
	Cookies  *jwtauth.SessionManager
	Cart     *cart.Store
	Catalog  *catalog.Service
	Orders   *order.Service
	Auth     *auth.Service
	Checkout *checkout.Service
	Ledger   *checkout.GormLedger
	Retrier  *checkout.FinalizationRetrier
	Alerts   *alert.Service
}

// NewServices wires the domain services over the shared Redis and Postgres handles
func NewServices(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger logrus.FieldLogger) *Services {
	api := commerce.NewClient(cfg.Commerce, &http.Client{Timeout: cfg.Commerce.Timeout}, logger.WithField("component", "commerce"))

	sessions := session.NewStore(redisClient, cfg.Session.TTL)
	cartStore := cart.NewStore(redisClient, cfg.Session.TTL, logger.WithField("component", "cart"))
	orders := order.NewService(api, logger.WithField("component", "order"))
	authService := auth.NewService(api, sessions, cartStore, logger.WithField("component", "auth"))
	ledger := checkout.NewGormLedger(db)
	alerts := alert.NewService(cfg.Alert, logger.WithField("component", "alert"))

	checkoutService := checkout.NewService(checkout.Dependencies{
		Redis:    redisClient,
		Sessions: sessions,
		Cart:     cartStore,
		Pricing:  pricing.NewReconciler(api),
		Orders:   orders,
		Intents:  payment.NewIntentService(api),
		Payments: payment.NewStripeConfirmer(cfg.Payment, &http.Client{Timeout: cfg.Payment.Timeout}, logger.WithField("component", "payment")),
		Identity: authService,
		Ledger:   ledger,
		Alerts:   alerts,
	}, cfg.Checkout, cfg.Payment.Currency, logger.WithField("component", "checkout"))

	return &Services{
		Sessions: sessions,
		Cookies:  jwtauth.NewSessionManager(cfg),
		Cart:     cartStore,
		Catalog:  catalog.NewService(api, redisClient, cfg.Catalog.CacheTTL, logger.WithField("component", "catalog")),
		Orders:   orders,
		Auth:     authService,
		Checkout: checkoutService,
		Ledger:   ledger,
		Retrier:  checkout.NewFinalizationRetrier(ledger, orders, alerts, cfg.Checkout, cfg.Commerce.ServiceToken, logger.WithField("component", "retrier")),
		Alerts:   alerts,
	}
}
