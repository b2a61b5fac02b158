package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/worksheetlab/server/internal/domain"
)

// WorksheetRepository handles saved worksheets. Rows are written only on
// explicit save and immutable afterwards.
type WorksheetRepository struct {
	db *DB
}

// NewWorksheetRepository creates a new worksheet repository.
func NewWorksheetRepository(db *DB) *WorksheetRepository {
	return &WorksheetRepository{db: db}
}

// Insert persists a worksheet. The file key is unique per owner.
func (r *WorksheetRepository) Insert(ctx context.Context, ws *domain.Worksheet) error {
	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}
	ws.CreatedAt = time.Now().UTC()

	content, err := json.Marshal(ws.Content)
	if err != nil {
		return fmt.Errorf("marshal worksheet content: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO worksheets (id, owner_id, file_key, subject, grade_level, topic, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ws.ID, ws.OwnerID, ws.FileKey, ws.Subject, ws.GradeLevel, ws.Topic, content, ws.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert worksheet: %w", err)
	}
	return nil
}

// GetByFileKey reads a worksheet by its external handle, scoped to the
// owner so one user cannot fetch another's sheets.
func (r *WorksheetRepository) GetByFileKey(ctx context.Context, ownerID uuid.UUID, fileKey string) (*domain.Worksheet, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, owner_id, file_key, subject, grade_level, topic, content, created_at
		FROM worksheets
		WHERE owner_id = $1 AND file_key = $2
	`, ownerID, fileKey)

	var ws domain.Worksheet
	var content []byte
	err := row.Scan(&ws.ID, &ws.OwnerID, &ws.FileKey, &ws.Subject, &ws.GradeLevel, &ws.Topic, &content, &ws.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("worksheet.get", "worksheet", fileKey)
		}
		return nil, fmt.Errorf("get worksheet: %w", err)
	}
	if err := json.Unmarshal(content, &ws.Content); err != nil {
		return nil, fmt.Errorf("unmarshal worksheet content: %w", err)
	}
	return &ws, nil
}

// ListByOwner returns a user's saved worksheets, newest first. Content
// is included so the editor can reopen a sheet without a second fetch.
func (r *WorksheetRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Worksheet, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, file_key, subject, grade_level, topic, content, created_at
		FROM worksheets
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	defer rows.Close()

	var out []domain.Worksheet
	for rows.Next() {
		var ws domain.Worksheet
		var content []byte
		if err := rows.Scan(&ws.ID, &ws.OwnerID, &ws.FileKey, &ws.Subject, &ws.GradeLevel, &ws.Topic, &content, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan worksheet: %w", err)
		}
		if err := json.Unmarshal(content, &ws.Content); err != nil {
			return nil, fmt.Errorf("unmarshal worksheet content: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}
