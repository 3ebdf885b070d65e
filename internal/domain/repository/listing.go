package repository

import (
	"context"

	"github.com/polkiloo/agrilink/internal/domain/model"
)

// ListingRepository describes persistence operations for marketplace listings.
// Update and Delete only affect listings owned by listing.SellerID.
type ListingRepository interface {
	Create(ctx context.Context, listing model.Listing) (*model.Listing, error)
	Update(ctx context.Context, listing model.Listing) (*model.Listing, error)
	Delete(ctx context.Context, id, sellerID int64) error
	GetByID(ctx context.Context, id int64) (*model.Listing, error)
	List(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error)
}
