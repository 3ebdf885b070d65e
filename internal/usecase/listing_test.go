package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	testhelpers "github.com/polkiloo/agrilink/internal/test"
)

func newListingUseCase() (*ListingUseCase, *testhelpers.ListingRepositoryStub, model.User, model.User) {
	users := testhelpers.NewUserRepositoryStub()
	farmer := users.Add(model.User{Email: "kofi@example.com", Role: model.RoleFarmer})
	buyer := users.Add(model.User{Email: "ama@example.com", Role: model.RoleBuyer})
	listings := testhelpers.NewListingRepositoryStub()
	return NewListingUseCase(listings, users), listings, farmer, buyer
}

func maizeInput() ListingInput {
	return ListingInput{
		Title:    " White maize ",
		Price:    decimal.RequireFromString("350.50"),
		Unit:     "bag",
		Category: "grains",
		Location: "Tamale",
		InStock:  true,
		MinOrder: 80,
	}
}

func TestListingCreate(t *testing.T) {
	uc, _, farmer, buyer := newListingUseCase()
	ctx := context.Background()

	listing, err := uc.Create(ctx, farmer.ID, maizeInput())
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if listing.ID == 0 || listing.SellerID != farmer.ID || listing.Title != "White maize" {
		t.Fatalf("unexpected listing %+v", listing)
	}
	if listing.EffectiveMinOrder() != 80 {
		t.Fatalf("expected min order 80, got %d", listing.EffectiveMinOrder())
	}

	if _, err := uc.Create(ctx, buyer.ID, maizeInput()); err != domainErrors.ErrForbidden {
		t.Fatalf("expected buyer to be forbidden, got %v", err)
	}
	if _, err := uc.Create(ctx, 99, maizeInput()); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected unknown seller to be not found, got %v", err)
	}
}

func TestListingCreateValidation(t *testing.T) {
	uc, _, farmer, _ := newListingUseCase()
	cases := map[string]func(*ListingInput){
		"title":     func(in *ListingInput) { in.Title = "" },
		"unit":      func(in *ListingInput) { in.Unit = " " },
		"price":     func(in *ListingInput) { in.Price = decimal.Zero },
		"negative":  func(in *ListingInput) { in.Price = decimal.NewFromInt(-5) },
		"min order": func(in *ListingInput) { in.MinOrder = -1 },
	}
	for name, mutate := range cases {
		in := maizeInput()
		mutate(&in)
		if _, err := uc.Create(context.Background(), farmer.ID, in); err != domainErrors.ErrInvalidListing {
			t.Fatalf("%s: expected ErrInvalidListing, got %v", name, err)
		}
	}
}

func TestListingUpdateAndDeleteRequireOwnership(t *testing.T) {
	uc, repo, farmer, _ := newListingUseCase()
	ctx := context.Background()
	other := repo.Add(model.Listing{SellerID: 77, Title: "Cassava", Price: decimal.NewFromInt(10), Unit: "kg"})

	listing, err := uc.Create(ctx, farmer.ID, maizeInput())
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	in := maizeInput()
	in.InStock = false
	updated, err := uc.Update(ctx, farmer.ID, listing.ID, in)
	if err != nil {
		t.Fatalf("update returned error: %v", err)
	}
	if updated.InStock || updated.ID != listing.ID {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if _, err := uc.Update(ctx, farmer.ID, other.ID, in); err != domainErrors.ErrForbidden {
		t.Fatalf("expected forbidden update, got %v", err)
	}
	if err := uc.Delete(ctx, farmer.ID, other.ID); err != domainErrors.ErrForbidden {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if err := uc.Delete(ctx, farmer.ID, listing.ID); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}
	if _, err := uc.Get(ctx, listing.ID); err != domainErrors.ErrNotFound {
		t.Fatalf("expected deleted listing to be gone, got %v", err)
	}
}

func TestListingBrowse(t *testing.T) {
	uc, repo, farmer, _ := newListingUseCase()
	repo.Add(model.Listing{SellerID: farmer.ID, Title: "Maize", Category: "grains", InStock: true, Price: decimal.NewFromInt(1), Unit: "bag"})
	repo.Add(model.Listing{SellerID: farmer.ID, Title: "Fertiliser", Category: "inputs", Price: decimal.NewFromInt(1), Unit: "bag"})
	repo.Add(model.Listing{SellerID: 5, Title: "Sorghum", Category: "grains", InStock: true, Price: decimal.NewFromInt(1), Unit: "bag"})

	grains, err := uc.Browse(context.Background(), model.ListingFilter{Category: "grains", InStockOnly: true, Limit: 1000})
	if err != nil || len(grains) != 2 {
		t.Fatalf("expected two grain listings, got %d (%v)", len(grains), err)
	}
	found, err := uc.Browse(context.Background(), model.ListingFilter{Search: " maize "})
	if err != nil || len(found) != 1 || found[0].Title != "Maize" {
		t.Fatalf("unexpected search result %+v (%v)", found, err)
	}
	mine, err := uc.BySeller(context.Background(), farmer.ID)
	if err != nil || len(mine) != 2 {
		t.Fatalf("expected two seller listings, got %d (%v)", len(mine), err)
	}
}
