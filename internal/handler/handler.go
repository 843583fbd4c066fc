package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"EstudaquiPay/internal/middleware"
	"EstudaquiPay/internal/poller"
	"EstudaquiPay/internal/services"
)

// Handler bundles the services the HTTP surface fronts.
type Handler struct {
	db       *gorm.DB
	packs    *services.PackService
	verifier *services.Verifier
	solana   *services.SolanaService
	orders   *poller.Manager
}

func New(db *gorm.DB, packs *services.PackService, verifier *services.Verifier, solana *services.SolanaService, orders *poller.Manager) *Handler {
	return &Handler{
		db:       db,
		packs:    packs,
		verifier: verifier,
		solana:   solana,
		orders:   orders,
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	InitStartTime(time.Now())

	r.GET("/healthz", HealthzHandler)
	r.GET("/readyz", h.ReadinessHandler)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/packs", h.ListPacksHandler)
		v1.POST("/payment/solana", h.VerifyPaymentHandler)
		v1.POST("/payment/solana/transaction", h.BuildTxHandler)
		v1.POST("/payment/solana/order", h.CreateOrderHandler)
		v1.GET("/payment/solana/order/:orderId", h.OrderStatusHandler)
		v1.DELETE("/payment/solana/order/:orderId", h.CancelOrderHandler)
	}

	admin := r.Group("/api/v1/admin", middleware.LocalOnly())
	{
		admin.POST("/packs/refresh", h.RefreshPacksHandler)
		admin.GET("/payment/:signature", h.GetPaymentHandler)
	}
}
