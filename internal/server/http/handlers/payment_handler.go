package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/server/http/dto"
)

const maxWebhookBody = 1 << 20

// PaymentHandler receives payment outcomes from the client and the gateway.
type PaymentHandler struct {
	facade PaymentFacade
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(facade PaymentFacade) *PaymentHandler {
	return &PaymentHandler{facade: facade}
}

// Callback handles POST /api/payments/callback.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var req dto.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("reference is required"))
		return
	}
	if err := h.facade.PaymentCallback(c.Request.Context(), req.Reference, req.OrderID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Webhook handles POST /api/payments/webhook.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		c.Status(http.StatusBadRequest)
		return
	}
	if err := h.facade.PaymentWebhook(c.Request.Context(), body, c.GetHeader(payment.SignatureHeader)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
