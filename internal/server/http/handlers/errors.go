package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/server/http/dto"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrQuantityBelowMinimum, http.StatusUnprocessableEntity, "quantity is below the minimum order"},
	{domainErrors.ErrEmptyDeliveryAddress, http.StatusUnprocessableEntity, "delivery address is required"},
	{domainErrors.ErrInvalidListing, http.StatusUnprocessableEntity, "listing is invalid"},
	{domainErrors.ErrOutOfStock, http.StatusUnprocessableEntity, "listing is out of stock"},
	{domainErrors.ErrInvalidCredentials, http.StatusBadRequest, "invalid credentials"},
	{domainErrors.ErrNotFound, http.StatusNotFound, "not found"},
	{domainErrors.ErrUnknownReference, http.StatusNotFound, "unknown payment reference"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domainErrors.ErrAlreadyExists, http.StatusConflict, "already exists"},
	{domainErrors.ErrOrderRejected, http.StatusConflict, "order was rejected by the extension officer"},
	{domainErrors.ErrChargeInFlight, http.StatusConflict, "a payment is already in progress"},
	{domainErrors.ErrPaymentUnreconciled, http.StatusConflict, "payment is awaiting reconciliation"},
	{domainErrors.ErrBusy, http.StatusConflict, "another operation is in progress, try again"},
	{domainErrors.ErrConflict, http.StatusConflict, "order was modified, reload and try again"},
	{domainErrors.ErrInvalidTransition, http.StatusConflict, "operation is not allowed in the current order state"},
	{payment.ErrChargeNotCaptured, http.StatusPaymentRequired, "payment was not captured"},
	{payment.ErrAmountMismatch, http.StatusPaymentRequired, "captured amount does not match the order"},
	{payment.ErrInvalidSignature, http.StatusUnauthorized, "invalid signature"},
}

func errorBody(message string) dto.ErrorResponse {
	return dto.ErrorResponse{Error: message}
}

// respondError maps a facade error to a status code and a user safe message.
// The cause is attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var recErr *domainErrors.ReconciliationError
	if errors.As(err, &recErr) {
		c.JSON(http.StatusAccepted, errorBody("payment received, order update is pending"))
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, errorBody(m.message))
			return
		}
	}
	if domainErrors.IsRetryable(err) {
		c.JSON(http.StatusServiceUnavailable, errorBody("service temporarily unavailable, try again"))
		return
	}
	c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}
