package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/domain/repository"
)

const orderColumns = `id, buyer_id, seller_id, listing_id, quantity, unit_price, total_amount, escrow_fee, amount_due,
    delivery_address, status, payment_status, COALESCE(payment_reference, ''), COALESCE(validated_by, 0),
    validation_notes, version, created_at, updated_at`

type orderRepository struct {
	storage *Storage
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &o.ListingID, &o.Quantity,
		&o.UnitPrice, &o.TotalAmount, &o.EscrowFee, &o.AmountDue,
		&o.DeliveryAddress, &o.Status, &o.PaymentStatus, &o.PaymentReference, &o.ValidatedBy,
		&o.ValidationNotes, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) Create(ctx context.Context, draft model.OrderDraft) (*model.Order, error) {
	if err := model.ValidateDraft(draft.Quantity, draft.DeliveryAddress, 0); err != nil {
		return nil, err
	}
	quote := draft.Quote()

	const query = `INSERT INTO orders (id, buyer_id, seller_id, listing_id, quantity, unit_price, total_amount,
                   escrow_fee, amount_due, delivery_address, status, payment_status)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
                   RETURNING ` + orderColumns
	row := r.storage.pool.QueryRow(ctx, query,
		uuid.NewString(), draft.BuyerID, draft.SellerID, draft.ListingID, draft.Quantity,
		quote.UnitPrice, quote.TotalAmount, quote.EscrowFee, quote.AmountDue,
		draft.DeliveryAddress, model.OrderStatusPending, model.PaymentStatusPending,
	)
	order, err := scanOrder(row)
	if err != nil {
		switch pgErrorCode(err) {
		case codeUniqueViolation:
			return nil, domainErrors.ErrAlreadyExists
		case codeForeignKeyViolation:
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return order, nil
}

func (r *orderRepository) GetByReference(ctx context.Context, reference string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_reference = $1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, reference))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return order, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status model.OrderStatus, update repository.StatusUpdate) (*model.Order, error) {
	var updated *model.Order
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		current, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if update.ExpectedVersion > 0 && current.Version != update.ExpectedVersion {
			return domainErrors.ErrConflict
		}
		if !model.CanTransitionStatus(current.Status, status) {
			return fmt.Errorf("%w: status %s -> %s", domainErrors.ErrInvalidTransition, current.Status, status)
		}
		paymentStatus := current.PaymentStatus
		if update.PaymentStatus != nil && *update.PaymentStatus != current.PaymentStatus {
			if !model.CanTransitionPayment(current.PaymentStatus, *update.PaymentStatus) {
				return fmt.Errorf("%w: payment %s -> %s", domainErrors.ErrInvalidTransition, current.PaymentStatus, *update.PaymentStatus)
			}
			paymentStatus = *update.PaymentStatus
		}

		const query = `UPDATE orders SET status = $2, payment_status = $3, version = version + 1, updated_at = NOW()
                       WHERE id = $1 RETURNING ` + orderColumns
		updated, err = scanOrder(tx.QueryRow(ctx, query, id, status, paymentStatus))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *orderRepository) UpdatePayment(ctx context.Context, id, reference string, status model.PaymentStatus) (*model.Order, error) {
	var updated *model.Order
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		current, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if reference == "" {
			reference = current.PaymentReference
		}
		if current.PaymentStatus == status && current.PaymentReference == reference {
			updated = current
			return nil
		}
		if current.PaymentReference != "" && current.PaymentReference != reference {
			return fmt.Errorf("%w: order %s already paid with another reference", domainErrors.ErrConflict, id)
		}
		if !model.CanTransitionPayment(current.PaymentStatus, status) {
			return fmt.Errorf("%w: payment %s -> %s", domainErrors.ErrInvalidTransition, current.PaymentStatus, status)
		}
		if status.RequiresReference() && reference == "" {
			return fmt.Errorf("%w: payment %s requires a reference", domainErrors.ErrInvalidTransition, status)
		}

		orderStatus := current.Status
		if status == model.PaymentStatusPaid {
			if !model.CanTransitionStatus(current.Status, model.OrderStatusPaid) {
				return fmt.Errorf("%w: status %s -> %s", domainErrors.ErrInvalidTransition, current.Status, model.OrderStatusPaid)
			}
			orderStatus = model.OrderStatusPaid
		}
		if !status.RequiresReference() {
			reference = ""
		}

		const query = `UPDATE orders SET payment_reference = $2, payment_status = $3, status = $4,
                       version = version + 1, updated_at = NOW()
                       WHERE id = $1 RETURNING ` + orderColumns
		updated, err = scanOrder(tx.QueryRow(ctx, query, id, nullString(reference), status, orderStatus))
		if err != nil && pgErrorCode(err) == codeUniqueViolation {
			return fmt.Errorf("%w: reference %s belongs to another order", domainErrors.ErrConflict, reference)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *orderRepository) Validate(ctx context.Context, id string, validatorID int64, approved bool, notes string) (*model.Order, error) {
	var updated *model.Order
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		current, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != model.OrderStatusPending {
			return fmt.Errorf("%w: order %s already %s", domainErrors.ErrInvalidTransition, id, current.Status)
		}

		status := model.OrderStatusCancelled
		if approved {
			status = model.OrderStatusValidated
		}
		const query = `UPDATE orders SET status = $2, validated_by = NULLIF($3::BIGINT, 0), validation_notes = $4,
                       version = version + 1, updated_at = NOW()
                       WHERE id = $1 RETURNING ` + orderColumns
		updated, err = scanOrder(tx.QueryRow(ctx, query, id, status, validatorID, notes))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, buyerID)
}

func (r *orderRepository) ListBySeller(ctx context.Context, sellerID int64) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE seller_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, sellerID)
}

func (r *orderRepository) ListPendingValidation(ctx context.Context, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *orderRepository) ListStalePendingValidation(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = 'pending' AND created_at < $1
              ORDER BY created_at ASC LIMIT $2`
	return r.list(ctx, query, olderThan, limit)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
