package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
)

var listingColumnNames = []string{
	"id", "seller_id", "title", "description", "price", "unit", "category", "location", "image_url", "in_stock",
	"min_order", "created_at", "updated_at",
}

func sampleListing(id int64) model.Listing {
	now := time.Now()
	return model.Listing{
		ID:        id,
		SellerID:  7,
		Title:     "Maize",
		Price:     decimal.RequireFromString("12.50"),
		Unit:      "bag",
		Category:  "grain",
		Location:  "Tamale",
		InStock:   true,
		MinOrder:  50,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func listingRows(listings ...model.Listing) *pgxmockv3.Rows {
	rows := pgxmockv3.NewRows(listingColumnNames)
	for _, l := range listings {
		rows.AddRow(l.ID, l.SellerID, l.Title, l.Description, l.Price, l.Unit, l.Category, l.Location, l.ImageURL,
			l.InStock, l.MinOrder, l.CreatedAt, l.UpdatedAt)
	}
	return rows
}

func TestBuildListingQuery(t *testing.T) {
	query, args := buildListingQuery(model.ListingFilter{})
	if strings.Contains(query, "WHERE") {
		t.Fatalf("unexpected WHERE clause in %q", query)
	}
	if len(args) != 2 || args[0] != defaultListingLimit || args[1] != 0 {
		t.Fatalf("unexpected args %v", args)
	}

	query, args = buildListingQuery(model.ListingFilter{
		SellerID:    7,
		Category:    " grain ",
		Location:    "Tamale",
		Search:      "maize",
		InStockOnly: true,
		Limit:       1000,
		Offset:      -5,
	})
	for _, fragment := range []string{
		"seller_id = $1",
		"category = $2",
		"location ILIKE '%' || $3 || '%'",
		"title ILIKE '%' || $4 || '%' OR description ILIKE '%' || $4 || '%'",
		"in_stock",
		"LIMIT $5 OFFSET $6",
	} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected %q in %q", fragment, query)
		}
	}
	want := []any{int64(7), "grain", "Tamale", "maize", maxListingLimit, 0}
	if len(args) != len(want) {
		t.Fatalf("unexpected args %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: expected %v, got %v", i, want[i], args[i])
		}
	}
}

func TestListingRepositoryCreateAndUpdate(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &listingRepository{storage: storage}

	l := sampleListing(0)
	createArgs := []any{l.SellerID, l.Title, l.Description, l.Price, l.Unit, l.Category, l.Location, l.ImageURL, l.InStock, l.MinOrder}

	mock.ExpectQuery("INSERT INTO listings").WithArgs(createArgs...).WillReturnRows(listingRows(sampleListing(5)))
	created, err := repo.Create(context.Background(), l)
	if err != nil || created.ID != 5 {
		t.Fatalf("unexpected result: %+v err=%v", created, err)
	}

	mock.ExpectQuery("INSERT INTO listings").WithArgs(createArgs...).WillReturnError(&pgconn.PgError{Code: codeCheckViolation})
	if _, err := repo.Create(context.Background(), l); !errors.Is(err, domainErrors.ErrInvalidListing) {
		t.Fatalf("expected invalid listing, got %v", err)
	}

	mock.ExpectQuery("INSERT INTO listings").WithArgs(createArgs...).WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation})
	if _, err := repo.Create(context.Background(), l); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	l = sampleListing(5)
	l.Title = "White maize"
	updateArgs := []any{l.ID, l.SellerID, l.Title, l.Description, l.Price, l.Unit, l.Category, l.Location, l.ImageURL, l.InStock, l.MinOrder}
	mock.ExpectQuery("UPDATE listings SET title").WithArgs(updateArgs...).WillReturnRows(listingRows(l))
	updated, err := repo.Update(context.Background(), l)
	if err != nil || updated.Title != "White maize" {
		t.Fatalf("unexpected result: %+v err=%v", updated, err)
	}

	mock.ExpectQuery("UPDATE listings SET title").WithArgs(updateArgs...).WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Update(context.Background(), l); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found for foreign listing, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestListingRepositoryDelete(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &listingRepository{storage: storage}

	mock.ExpectExec("DELETE FROM listings").WithArgs(int64(5), int64(7)).WillReturnResult(pgxmockv3.NewResult("DELETE", 1))
	if err := repo.Delete(context.Background(), 5, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("DELETE FROM listings").WithArgs(int64(5), int64(8)).WillReturnResult(pgxmockv3.NewResult("DELETE", 0))
	if err := repo.Delete(context.Background(), 5, 8); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectExec("DELETE FROM listings").WithArgs(int64(6), int64(7)).WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation})
	if err := repo.Delete(context.Background(), 6, 7); !errors.Is(err, domainErrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	mock.ExpectExec("DELETE FROM listings").WithArgs(int64(6), int64(7)).WillReturnError(errors.New("down"))
	if err := repo.Delete(context.Background(), 6, 7); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestListingRepositoryRead(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &listingRepository{storage: storage}

	mock.ExpectQuery("FROM listings WHERE id").WithArgs(int64(5)).WillReturnRows(listingRows(sampleListing(5)))
	l, err := repo.GetByID(context.Background(), 5)
	if err != nil || l.ID != 5 || !l.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected listing: %+v err=%v", l, err)
	}

	mock.ExpectQuery("FROM listings WHERE id").WithArgs(int64(6)).WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), 6); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery("FROM listings WHERE category").WithArgs("grain", defaultListingLimit, 0).
		WillReturnRows(listingRows(sampleListing(1), sampleListing(2)))
	list, err := repo.List(context.Background(), model.ListingFilter{Category: "grain"})
	if err != nil || len(list) != 2 {
		t.Fatalf("unexpected result: %v err=%v", list, err)
	}

	mock.ExpectQuery("FROM listings ORDER BY").WithArgs(defaultListingLimit, 0).WillReturnError(errors.New("query"))
	if _, err := repo.List(context.Background(), model.ListingFilter{}); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("FROM listings ORDER BY").WithArgs(defaultListingLimit, 0).WillReturnRows(
		listingRows(sampleListing(1)).RowError(0, errors.New("row")),
	)
	if _, err := repo.List(context.Background(), model.ListingFilter{}); err == nil {
		t.Fatal("expected row error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
