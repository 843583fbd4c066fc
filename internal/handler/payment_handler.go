package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"EstudaquiPay/internal/db"
	"EstudaquiPay/internal/models"
	"EstudaquiPay/internal/poller"
	"EstudaquiPay/internal/services"
	"EstudaquiPay/utils"
)

// VerifyPaymentHandler confirms a wallet-submitted transaction: it verifies
// the on-chain transfer+memo and credits the user once per signature.
func (h *Handler) VerifyPaymentHandler(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ok, err := h.verifier.VerifyAndCredit(c.Request.Context(), req.UserID, req.Signature, req.PackID, req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		case errors.Is(err, services.ErrUnknownPack):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown pack"})
		case errors.Is(err, services.ErrTxNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		case errors.Is(err, services.ErrTxFailed):
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction failed on chain"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment verification failed"})
		}
		return
	}

	c.JSON(http.StatusOK, models.VerifyPaymentResponse{Success: ok})
}

// BuildTxHandler returns the unsigned USDC transfer + memo transaction for a
// pack purchase, ready for the user's wallet to sign.
func (h *Handler) BuildTxHandler(c *gin.Context) {
	var req models.BuildTxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	pack, err := h.packs.GetPackInfoByID(c.Request.Context(), req.PackID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pack lookup failed"})
		return
	}
	if pack == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown pack"})
		return
	}

	memo := utils.SimpleMemo(req.UserID, req.PackID)
	serialized, err := h.solana.BuildPaymentTx(c.Request.Context(), req.Wallet, pack, memo)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, utils.ErrMemoTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build transaction"})
		}
		return
	}

	c.JSON(http.StatusOK, models.BuildTxResponse{SerializedTx: serialized, Memo: memo})
}

// CreateOrderHandler opens a QR checkout session and starts the server-side
// payment poll bound to the fresh order id.
func (h *Handler) CreateOrderHandler(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	orderID, memo, err := h.orders.Open(c.Request.Context(), req.UserID, req.PackID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownPack):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown pack"})
		case errors.Is(err, poller.ErrAlreadyPolling):
			c.JSON(http.StatusConflict, gin.H{"error": "order already active"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open order"})
		}
		return
	}

	pack, err := h.packs.GetPackInfoByID(c.Request.Context(), req.PackID)
	if err != nil || pack == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pack lookup failed"})
		return
	}

	c.JSON(http.StatusOK, models.CreateOrderResponse{
		OrderID:        orderID,
		Memo:           memo,
		Receiver:       h.solana.ReceiverATA.String(),
		Amount:         services.PriceToTokenAmount(pack.PriceUSD),
		TimeoutSeconds: int(h.orders.Timeout().Seconds()),
	})
}

// OrderStatusHandler reports a checkout session's state.
func (h *Handler) OrderStatusHandler(c *gin.Context) {
	orderID := c.Param("orderId")
	state, err := h.orders.Status(orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, models.OrderStatusResponse{OrderID: orderID, Status: string(state)})
}

// CancelOrderHandler stops a checkout session (modal closed). Idempotent.
func (h *Handler) CancelOrderHandler(c *gin.Context) {
	orderID := c.Param("orderId")
	if err := h.orders.Cancel(orderID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderID": orderID, "status": "cancelled"})
}

// GetPaymentHandler returns the payment record for a transaction signature.
func (h *Handler) GetPaymentHandler(c *gin.Context) {
	signature := c.Param("signature")
	rec, err := db.GetPaymentBySignature(c.Request.Context(), h.db, signature)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"method":       rec.Method,
		"user_id":      rec.UserID,
		"pack_id":      rec.PackID,
		"tx_signature": rec.TXSignature,
		"paid_at":      rec.PaidAt,
	})
}
