package usecase

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/domain/repository"
)

const maxBrowseLimit = 100

// ListingInput carries the editable listing fields.
type ListingInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Unit        string
	Category    string
	Location    string
	ImageURL    string
	InStock     bool
	MinOrder    int
}

func (in ListingInput) validate() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Unit) == "" {
		return domainErrors.ErrInvalidListing
	}
	if !in.Price.IsPositive() || in.MinOrder < 0 {
		return domainErrors.ErrInvalidListing
	}
	return nil
}

// ListingUseCase manages the marketplace catalogue.
type ListingUseCase struct {
	listings repository.ListingRepository
	users    repository.UserRepository
}

// NewListingUseCase constructs ListingUseCase.
func NewListingUseCase(listings repository.ListingRepository, users repository.UserRepository) *ListingUseCase {
	return &ListingUseCase{listings: listings, users: users}
}

// Create publishes a listing for sellerID. Buyers and officers cannot sell.
func (u *ListingUseCase) Create(ctx context.Context, sellerID int64, in ListingInput) (*model.Listing, error) {
	if err := u.requireSeller(ctx, sellerID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return u.listings.Create(ctx, apply(model.Listing{SellerID: sellerID}, in))
}

// Update replaces the fields of a listing owned by sellerID.
func (u *ListingUseCase) Update(ctx context.Context, sellerID, id int64, in ListingInput) (*model.Listing, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	current, err := u.owned(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	return u.listings.Update(ctx, apply(*current, in))
}

// Delete removes a listing owned by sellerID.
func (u *ListingUseCase) Delete(ctx context.Context, sellerID, id int64) error {
	if _, err := u.owned(ctx, sellerID, id); err != nil {
		return err
	}
	return u.listings.Delete(ctx, id, sellerID)
}

// Get returns a single listing.
func (u *ListingUseCase) Get(ctx context.Context, id int64) (*model.Listing, error) {
	return u.listings.GetByID(ctx, id)
}

// Browse lists listings matching filter, newest first.
func (u *ListingUseCase) Browse(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	if filter.Limit <= 0 || filter.Limit > maxBrowseLimit {
		filter.Limit = maxBrowseLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return u.listings.List(ctx, filter)
}

// BySeller lists every listing of sellerID.
func (u *ListingUseCase) BySeller(ctx context.Context, sellerID int64) ([]model.Listing, error) {
	return u.listings.List(ctx, model.ListingFilter{SellerID: sellerID})
}

func (u *ListingUseCase) requireSeller(ctx context.Context, userID int64) error {
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Role.CanSell() {
		return domainErrors.ErrForbidden
	}
	return nil
}

func (u *ListingUseCase) owned(ctx context.Context, sellerID, id int64) (*model.Listing, error) {
	listing, err := u.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, domainErrors.ErrForbidden
	}
	return listing, nil
}

func apply(l model.Listing, in ListingInput) model.Listing {
	l.Title = strings.TrimSpace(in.Title)
	l.Description = strings.TrimSpace(in.Description)
	l.Price = in.Price
	l.Unit = strings.TrimSpace(in.Unit)
	l.Category = strings.TrimSpace(in.Category)
	l.Location = strings.TrimSpace(in.Location)
	l.ImageURL = strings.TrimSpace(in.ImageURL)
	l.InStock = in.InStock
	l.MinOrder = in.MinOrder
	return l
}
