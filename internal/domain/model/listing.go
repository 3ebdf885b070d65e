package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a product offered by a seller.
type Listing struct {
	ID          int64
	SellerID    int64
	Title       string
	Description string
	Price       decimal.Decimal
	Unit        string
	Category    string
	Location    string
	ImageURL    string
	InStock     bool
	MinOrder    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectiveMinOrder is the larger of the listing minimum and MinOrderQuantity.
func (l Listing) EffectiveMinOrder() int {
	if l.MinOrder > MinOrderQuantity {
		return l.MinOrder
	}
	return MinOrderQuantity
}

// ListingFilter narrows listing browsing. Zero values disable a criterion.
type ListingFilter struct {
	Category    string
	Location    string
	Search      string
	SellerID    int64
	InStockOnly bool
	Limit       int
	Offset      int
}
