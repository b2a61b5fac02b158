package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/worksheetlab/server/internal/domain"
)

// PendingDebit is a bonus debit that failed at commit time and is
// retried by the reconciler.
type PendingDebit struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      domain.ResourceKind
	Attempts  int
	CreatedAt time.Time
}

// ReconcileRepository is the queue of bonus debits that could not be
// applied inline. Rows are deleted once the debit lands or the bonus
// balance is already zero.
type ReconcileRepository struct {
	db *DB
}

// NewReconcileRepository creates a new reconcile repository.
func NewReconcileRepository(db *DB) *ReconcileRepository {
	return &ReconcileRepository{db: db}
}

// Enqueue records a failed bonus debit for later retry.
func (r *ReconcileRepository) Enqueue(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bonus_debit_queue (id, user_id, kind, attempts, created_at)
		VALUES ($1, $2, $3, 0, $4)
	`, uuid.New(), userID, string(kind), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enqueue bonus debit: %w", err)
	}
	return nil
}

// Dequeue returns up to limit pending debits, oldest first, bumping
// their attempt counter so repeatedly failing rows can be spotted.
func (r *ReconcileRepository) Dequeue(ctx context.Context, limit int) ([]PendingDebit, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx, `
		UPDATE bonus_debit_queue
		SET attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM bonus_debit_queue
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, kind, attempts, created_at
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue bonus debits: %w", err)
	}
	defer rows.Close()

	var out []PendingDebit
	for rows.Next() {
		var d PendingDebit
		var kind string
		if err := rows.Scan(&d.ID, &d.UserID, &kind, &d.Attempts, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending debit: %w", err)
		}
		d.Kind = domain.ResourceKind(kind)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a reconciled row.
func (r *ReconcileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM bonus_debit_queue WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pending debit: %w", err)
	}
	return nil
}
