package model

import (
	"strings"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
)

// ValidateDraft checks the buyer-supplied order fields against the minimum quantity.
func ValidateDraft(quantity int, deliveryAddress string, minimum int) error {
	if minimum < MinOrderQuantity {
		minimum = MinOrderQuantity
	}
	if quantity < minimum {
		return domainErrors.ErrQuantityBelowMinimum
	}
	if strings.TrimSpace(deliveryAddress) == "" {
		return domainErrors.ErrEmptyDeliveryAddress
	}
	return nil
}
