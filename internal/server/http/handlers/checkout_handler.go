package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/orderflow"
	"github.com/polkiloo/agrilink/internal/server/http/dto"
	"github.com/polkiloo/agrilink/internal/usecase"
)

// CheckoutHandler walks a buyer through placing and paying an order.
type CheckoutHandler struct {
	facade CheckoutFacade
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(facade CheckoutFacade) *CheckoutHandler {
	return &CheckoutHandler{facade: facade}
}

// Start handles POST /api/checkout.
func (h *CheckoutHandler) Start(c *gin.Context) {
	var req dto.StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("listing_id is required"))
		return
	}
	snap, err := h.facade.StartCheckout(c.Request.Context(), CurrentUserID(c), req.ListingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCheckoutResponse(snap))
}

// Resume handles POST /api/orders/:id/checkout.
func (h *CheckoutHandler) Resume(c *gin.Context) {
	snap, err := h.facade.ResumeCheckout(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCheckoutResponse(snap))
}

// Get handles GET /api/checkout/:session.
func (h *CheckoutHandler) Get(c *gin.Context) {
	snap, err := h.facade.Checkout(CurrentUserID(c), c.Param("session"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCheckoutResponse(snap))
}

// Update handles PATCH /api/checkout/:session.
func (h *CheckoutHandler) Update(c *gin.Context) {
	var req dto.UpdateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("malformed request"))
		return
	}
	snap, err := h.facade.UpdateCheckout(CurrentUserID(c), c.Param("session"), usecase.CheckoutUpdate{
		Quantity:        req.Quantity,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCheckoutResponse(snap))
}

// Submit handles POST /api/checkout/:session/submit.
func (h *CheckoutHandler) Submit(c *gin.Context) {
	h.transition(c, h.facade.SubmitCheckout)
}

// Pay handles POST /api/checkout/:session/pay.
func (h *CheckoutHandler) Pay(c *gin.Context) {
	checkout, err := h.facade.Pay(c.Request.Context(), CurrentUserID(c), c.Param("session"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(checkout))
}

// CancelPayment handles POST /api/checkout/:session/pay/cancel.
func (h *CheckoutHandler) CancelPayment(c *gin.Context) {
	h.transition(c, h.facade.CancelPayment)
}

// Cancel handles POST /api/checkout/:session/cancel.
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	h.transition(c, h.facade.CancelCheckout)
}

type sessionOp func(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error)

func (h *CheckoutHandler) transition(c *gin.Context, op sessionOp) {
	snap, err := op(c.Request.Context(), CurrentUserID(c), c.Param("session"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCheckoutResponse(snap))
}

func toCheckoutResponse(s orderflow.Snapshot) dto.CheckoutResponse {
	resp := dto.CheckoutResponse{
		ID:              s.ID,
		Stage:           string(s.Stage),
		Validation:      string(s.Validation),
		InProgress:      s.InProgress,
		Quantity:        s.Quantity,
		MinQuantity:     s.MinQuantity,
		DeliveryAddress: s.DeliveryAddress,
		CanSubmit:       s.CanSubmit,
		Quote: dto.QuoteResponse{
			UnitPrice:   s.Quote.UnitPrice,
			Quantity:    s.Quote.Quantity,
			TotalAmount: s.Quote.TotalAmount,
			EscrowFee:   s.Quote.EscrowFee,
			AmountDue:   s.Quote.AmountDue,
		},
		Listing:             toListingResponse(s.Listing),
		NeedsReconciliation: s.NeedsReconciliation,
	}
	if s.Order != nil {
		order := toOrderResponse(*s.Order)
		resp.Order = &order
	}
	if s.Checkout != nil {
		p := toPaymentResponse(s.Checkout)
		resp.Payment = &p
	}
	return resp
}

func toPaymentResponse(c *payment.Checkout) dto.PaymentResponse {
	return dto.PaymentResponse{
		Reference:        c.Reference,
		AuthorizationURL: c.AuthorizationURL,
		AccessCode:       c.AccessCode,
		Amount:           c.Amount,
		Currency:         c.Currency,
	}
}
