package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingRequest is the create/update payload of a listing.
type ListingRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Unit        string          `json:"unit"`
	Category    string          `json:"category"`
	Location    string          `json:"location"`
	ImageURL    string          `json:"image_url"`
	InStock     *bool           `json:"in_stock"`
	MinOrder    int             `json:"min_order"`
}

// ListingResponse describes a listing.
type ListingResponse struct {
	ID          int64           `json:"id"`
	SellerID    int64           `json:"seller_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Unit        string          `json:"unit"`
	Category    string          `json:"category,omitempty"`
	Location    string          `json:"location,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	InStock     bool            `json:"in_stock"`
	MinOrder    int             `json:"min_order"`
	CreatedAt   time.Time       `json:"created_at"`
}
