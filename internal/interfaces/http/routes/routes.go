// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/app"
	"github.com/your-org/storefront-gateway/internal/config"
	"github.com/your-org/storefront-gateway/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-gateway/internal/interfaces/http/middleware"
)

// SetupAuthRoutes sets up authentication related routes
func SetupAuthRoutes(rg *gin.RouterGroup, services *app.Services, cfg *config.Config, logger logrus.FieldLogger) {
	authHandler := handlers.NewAuthHandler(services.Auth, cfg.Checkout.LoginPath, logger)

	auth := rg.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/verify", authHandler.Verify)
	}
}

// SetupCartRoutes sets up cart related routes
func SetupCartRoutes(rg *gin.RouterGroup, services *app.Services, cfg *config.Config, logger logrus.FieldLogger) {
	cartHandler := handlers.NewCartHandler(services.Cart, services.Catalog, logger)
	checkoutHandler := handlers.NewCheckoutHandler(services.Checkout, cfg.Checkout.LoginPath, logger)

	cart := rg.Group("/cart")
	{
		cart.GET("", cartHandler.GetCart)
		cart.DELETE("", cartHandler.ClearCart)
		cart.POST("/items", cartHandler.AddItem)
		cart.PUT("/items/:productId", cartHandler.UpdateItem)
		cart.DELETE("/items/:productId", cartHandler.RemoveItem)
		cart.GET("/events", cartHandler.Events)

		cart.POST("/summary",
			middleware.RequireShopper(services.Auth, cfg.Checkout.LoginPath, cfg.Checkout.ReturnPath, true, logger),
			checkoutHandler.Summary)
	}
}

// SetupCheckoutRoutes sets up checkout related routes
func SetupCheckoutRoutes(rg *gin.RouterGroup, services *app.Services, cfg *config.Config, logger logrus.FieldLogger) {
	checkoutHandler := handlers.NewCheckoutHandler(services.Checkout, cfg.Checkout.LoginPath, logger)

	checkout := rg.Group("/checkout")
	{
		checkout.GET("/status", checkoutHandler.Status)
		checkout.GET("/shipping-address", checkoutHandler.ShippingAddress)
		checkout.GET("/attempts", checkoutHandler.Attempts)

		// Submit resolves the shopper itself so an expired token maps to the checkout auth error
		checkout.POST("", checkoutHandler.Submit)
	}
}

// SetupOrderRoutes sets up order related routes
func SetupOrderRoutes(rg *gin.RouterGroup, services *app.Services, cfg *config.Config, logger logrus.FieldLogger) {
	orderHandler := handlers.NewOrderHandler(services.Orders, services.Auth, cfg.Checkout.LoginPath, logger)

	orders := rg.Group("/orders")
	orders.Use(middleware.RequireShopper(services.Auth, cfg.Checkout.LoginPath, "/orders", false, logger))
	{
		orders.GET("", orderHandler.ListOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.GET("/:id/invoice", orderHandler.DownloadInvoice)
	}
}

// SetupRoutes sets up all API routes behind the session middleware
func SetupRoutes(rg *gin.RouterGroup, services *app.Services, cfg *config.Config, logger logrus.FieldLogger) {
	rg.Use(middleware.Session(services.Cookies, cfg.Session, logger))

	SetupAuthRoutes(rg, services, cfg, logger)
	SetupCartRoutes(rg, services, cfg, logger)
	SetupCheckoutRoutes(rg, services, cfg, logger)
	SetupOrderRoutes(rg, services, cfg, logger)
}
