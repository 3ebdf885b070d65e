package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/agrilink/internal/config"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/metrics"
	"github.com/polkiloo/agrilink/internal/server/http/handlers"
	"github.com/polkiloo/agrilink/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.MarketplaceFacade, logger *slog.Logger, cfg *config.Config, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.Metrics(m))
	if len(cfg.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{"Origin", "Content-Type", "Content-Encoding", "Authorization"},
			ExposeHeaders:    []string{"Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	engine.GET("/metrics", gin.WrapH(m.Handler()))

	authHandler := handlers.NewAuthHandler(facade)
	listingHandler := handlers.NewListingHandler(facade)
	checkoutHandler := handlers.NewCheckoutHandler(facade)
	orderHandler := handlers.NewOrderHandler(facade)
	validationHandler := handlers.NewValidationHandler(facade)
	paymentHandler := handlers.NewPaymentHandler(facade)
	healthHandler := handlers.NewHealthHandler(facade)

	api := engine.Group("/api")
	api.GET("/health", healthHandler.Check)
	api.GET("/listings", listingHandler.Browse)
	api.GET("/listings/:id", listingHandler.Get)
	api.POST("/payments/webhook", paymentHandler.Webhook)

	user := api.Group("/user")
	user.POST("/register", authHandler.Register)
	user.POST("/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.AuthRequired(facade))

	authed.GET("/user/orders", orderHandler.Purchases)
	authed.GET("/user/sales", orderHandler.Sales)
	authed.GET("/user/listings", listingHandler.Mine)

	authed.POST("/listings", listingHandler.Create)
	authed.PUT("/listings/:id", listingHandler.Update)
	authed.DELETE("/listings/:id", listingHandler.Delete)

	checkout := authed.Group("/checkout")
	checkout.POST("", checkoutHandler.Start)
	checkout.GET("/:session", checkoutHandler.Get)
	checkout.PATCH("/:session", checkoutHandler.Update)
	checkout.POST("/:session/submit", checkoutHandler.Submit)
	checkout.POST("/:session/pay", checkoutHandler.Pay)
	checkout.POST("/:session/pay/cancel", checkoutHandler.CancelPayment)
	checkout.POST("/:session/cancel", checkoutHandler.Cancel)

	orders := authed.Group("/orders")
	orders.GET("/:id", orderHandler.Get)
	orders.POST("/:id/checkout", checkoutHandler.Resume)
	orders.POST("/:id/dispatch", orderHandler.Dispatch)
	orders.POST("/:id/delivery", orderHandler.ConfirmDelivery)

	authed.POST("/payments/callback", paymentHandler.Callback)

	validations := authed.Group("/validations")
	validations.Use(middleware.RequireRole(string(model.RoleExtensionOfficer)))
	validations.GET("", validationHandler.Queue)
	validations.POST("/:id", validationHandler.Decide)

	return engine
}
