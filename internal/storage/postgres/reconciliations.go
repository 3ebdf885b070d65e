package postgres

import (
	"context"
	"fmt"
	"log/slog"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
)

const reconciliationColumns = `id, order_id, reference, reason, attempts, last_error, created_at, resolved_at`

type reconciliationRepository struct {
	storage *Storage
}

func scanReconciliation(row rowScanner) (*model.Reconciliation, error) {
	var rec model.Reconciliation
	err := row.Scan(&rec.ID, &rec.OrderID, &rec.Reference, &rec.Reason, &rec.Attempts, &rec.LastError, &rec.CreatedAt, &rec.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *reconciliationRepository) Enqueue(ctx context.Context, orderID, reference, reason string) (*model.Reconciliation, error) {
	const query = `INSERT INTO reconciliations (order_id, reference, reason) VALUES ($1, $2, $3)
                   ON CONFLICT (reference) DO UPDATE SET reason = EXCLUDED.reason
                   RETURNING ` + reconciliationColumns
	rec, err := scanReconciliation(r.storage.pool.QueryRow(ctx, query, orderID, reference, reason))
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("enqueue reconciliation: %w", err)
	}
	return rec, nil
}

func (r *reconciliationRepository) ListOpen(ctx context.Context, limit int) ([]model.Reconciliation, error) {
	const query = `SELECT ` + reconciliationColumns + ` FROM reconciliations
                   WHERE resolved_at IS NULL ORDER BY created_at ASC LIMIT $1`
	rows, err := r.storage.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Reconciliation
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *reconciliationRepository) RecordAttempt(ctx context.Context, id int64, lastErr string) error {
	const query = `UPDATE reconciliations SET attempts = attempts + 1, last_error = $2 WHERE id = $1`
	tag, err := r.storage.pool.Exec(ctx, query, id, lastErr)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *reconciliationRepository) Resolve(ctx context.Context, id int64) error {
	const query = `UPDATE reconciliations SET resolved_at = NOW() WHERE id = $1 AND resolved_at IS NULL`
	tag, err := r.storage.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	r.storage.logger.Info("reconciliation resolved", slog.Int64("id", id))
	return nil
}
