package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/worksheetlab/server/internal/domain"
)

// UsageRepository handles the append-only consumption event logs. One
// table per resource kind; rows are never updated or deleted, and the
// count inside the accounting window is the sole source of truth for
// usage.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// InsertEvent appends one consumption event.
func (r *UsageRepository) InsertEvent(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind, ref string) error {
	table, err := eventTable(kind)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO `+table+` (id, user_id, ref, created_at)
		VALUES ($1, $2, $3, now())
	`, uuid.New(), userID, ref)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", kind, err)
	}
	return nil
}

// CountSince counts consumption events for a user at or after the given
// window start.
func (r *UsageRepository) CountSince(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind, since time.Time) (int, error) {
	table, err := eventTable(kind)
	if err != nil {
		return 0, err
	}
	var count int
	err = r.db.QueryRow(ctx, `
		SELECT count(*)
		FROM `+table+`
		WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count %s events: %w", kind, err)
	}
	return count, nil
}

func eventTable(kind domain.ResourceKind) (string, error) {
	switch kind {
	case domain.ResourceGeneration:
		return "generation_events", nil
	case domain.ResourceDownload:
		return "download_events", nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
}
