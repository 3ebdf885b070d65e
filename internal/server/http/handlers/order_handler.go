package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/server/http/dto"
)

// OrderHandler manages order-related endpoints.
type OrderHandler struct {
	facade OrderFacade
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade) *OrderHandler {
	return &OrderHandler{facade: facade}
}

// Purchases handles GET /api/user/orders.
func (h *OrderHandler) Purchases(c *gin.Context) {
	h.list(c, h.facade.Purchases)
}

// Sales handles GET /api/user/sales.
func (h *OrderHandler) Sales(c *gin.Context) {
	h.list(c, h.facade.Sales)
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.facade.Order(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

// Dispatch handles POST /api/orders/:id/dispatch.
func (h *OrderHandler) Dispatch(c *gin.Context) {
	h.transition(c, h.facade.Dispatch)
}

// ConfirmDelivery handles POST /api/orders/:id/delivery.
func (h *OrderHandler) ConfirmDelivery(c *gin.Context) {
	h.transition(c, h.facade.ConfirmDelivery)
}

func (h *OrderHandler) list(c *gin.Context, fetch func(context.Context, int64) ([]model.Order, error)) {
	orders, err := fetch(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(orders) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, toOrderResponses(orders))
}

func (h *OrderHandler) transition(c *gin.Context, op func(context.Context, int64, string) (*model.Order, error)) {
	order, err := op(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

func toOrderResponse(order model.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:               order.ID,
		BuyerID:          order.BuyerID,
		SellerID:         order.SellerID,
		ListingID:        order.ListingID,
		Quantity:         order.Quantity,
		UnitPrice:        order.UnitPrice,
		TotalAmount:      order.TotalAmount,
		EscrowFee:        order.EscrowFee,
		AmountDue:        order.AmountDue,
		DeliveryAddress:  order.DeliveryAddress,
		Status:           string(order.Status),
		PaymentStatus:    string(order.PaymentStatus),
		PaymentReference: order.PaymentReference,
		ValidatedBy:      order.ValidatedBy,
		ValidationNotes:  order.ValidationNotes,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

func toOrderResponses(orders []model.Order) []dto.OrderResponse {
	resp := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	return resp
}
