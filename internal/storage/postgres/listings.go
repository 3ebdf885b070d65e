package postgres

import (
	"context"
	"fmt"
	"strings"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
)

const (
	listingColumns = `id, seller_id, title, description, price, unit, category, location, image_url, in_stock,
    min_order, created_at, updated_at`
	defaultListingLimit = 50
	maxListingLimit     = 200
)

type listingRepository struct {
	storage *Storage
}

func scanListing(row rowScanner) (*model.Listing, error) {
	var l model.Listing
	err := row.Scan(&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Price, &l.Unit, &l.Category,
		&l.Location, &l.ImageURL, &l.InStock, &l.MinOrder, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listingRepository) Create(ctx context.Context, listing model.Listing) (*model.Listing, error) {
	const query = `INSERT INTO listings (seller_id, title, description, price, unit, category, location, image_url,
                   in_stock, min_order)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING ` + listingColumns
	created, err := scanListing(r.storage.pool.QueryRow(ctx, query,
		listing.SellerID, listing.Title, listing.Description, listing.Price, listing.Unit, listing.Category,
		listing.Location, listing.ImageURL, listing.InStock, listing.MinOrder,
	))
	if err != nil {
		switch pgErrorCode(err) {
		case codeForeignKeyViolation:
			return nil, domainErrors.ErrNotFound
		case codeCheckViolation:
			return nil, domainErrors.ErrInvalidListing
		}
		return nil, fmt.Errorf("insert listing: %w", err)
	}
	return created, nil
}

func (r *listingRepository) Update(ctx context.Context, listing model.Listing) (*model.Listing, error) {
	const query = `UPDATE listings SET title = $3, description = $4, price = $5, unit = $6, category = $7,
                   location = $8, image_url = $9, in_stock = $10, min_order = $11, updated_at = NOW()
                   WHERE id = $1 AND seller_id = $2 RETURNING ` + listingColumns
	updated, err := scanListing(r.storage.pool.QueryRow(ctx, query,
		listing.ID, listing.SellerID, listing.Title, listing.Description, listing.Price, listing.Unit,
		listing.Category, listing.Location, listing.ImageURL, listing.InStock, listing.MinOrder,
	))
	if err != nil {
		if pgErrorCode(err) == codeCheckViolation {
			return nil, domainErrors.ErrInvalidListing
		}
		return nil, mapNoRows(err)
	}
	return updated, nil
}

func (r *listingRepository) Delete(ctx context.Context, id, sellerID int64) error {
	const query = `DELETE FROM listings WHERE id = $1 AND seller_id = $2`
	tag, err := r.storage.pool.Exec(ctx, query, id, sellerID)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("%w: listing %d has orders", domainErrors.ErrConflict, id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *listingRepository) GetByID(ctx context.Context, id int64) (*model.Listing, error) {
	const query = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	l, err := scanListing(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return l, nil
}

func (r *listingRepository) List(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	query, args := buildListingQuery(filter)
	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func buildListingQuery(filter model.ListingFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.SellerID > 0 {
		add("seller_id = $%d", filter.SellerID)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		add("category = $%d", c)
	}
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		add("location ILIKE '%%' || $%d || '%%'", loc)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, s)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", n, n))
	}
	if filter.InStockOnly {
		conditions = append(conditions, "in_stock")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListingLimit
	}
	limit = min(limit, maxListingLimit)
	offset := max(filter.Offset, 0)

	var b strings.Builder
	b.WriteString(`SELECT ` + listingColumns + ` FROM listings`)
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return b.String(), args
}
