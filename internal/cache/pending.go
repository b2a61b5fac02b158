package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/worksheetlab/server/internal/domain"
)

const (
	// PendingTTL is how long an unsaved generation stays claimable.
	// After it expires the user must generate again.
	PendingTTL = 24 * time.Hour

	pendingKeyPrefix = "pending:"
)

// PendingStore holds freshly generated worksheets between generation
// and an explicit save. Entries are keyed by owner and file key so a
// user can only claim their own results.
type PendingStore struct {
	redis *Redis
}

// NewPendingStore creates a pending worksheet store.
func NewPendingStore(redis *Redis) *PendingStore {
	return &PendingStore{redis: redis}
}

func pendingKey(ownerID uuid.UUID, fileKey string) string {
	return fmt.Sprintf("%s%s:%s", pendingKeyPrefix, ownerID, fileKey)
}

// Put stores a generated worksheet awaiting save.
func (s *PendingStore) Put(ctx context.Context, ws *domain.Worksheet) error {
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("marshal pending worksheet: %w", err)
	}
	key := pendingKey(ws.OwnerID, ws.FileKey)
	if err := s.redis.Set(ctx, key, data, PendingTTL); err != nil {
		return fmt.Errorf("store pending worksheet: %w", err)
	}
	return nil
}

// Get retrieves a pending worksheet. A miss returns domain.NotFound.
func (s *PendingStore) Get(ctx context.Context, ownerID uuid.UUID, fileKey string) (*domain.Worksheet, error) {
	data, err := s.redis.Get(ctx, pendingKey(ownerID, fileKey))
	if err != nil {
		if IsMiss(err) {
			return nil, domain.NotFound("pending.get", "pending worksheet", fileKey)
		}
		return nil, fmt.Errorf("get pending worksheet: %w", err)
	}

	var ws domain.Worksheet
	if err := json.Unmarshal([]byte(data), &ws); err != nil {
		return nil, fmt.Errorf("unmarshal pending worksheet: %w", err)
	}
	return &ws, nil
}

// Delete drops a pending worksheet once it has been saved or abandoned.
func (s *PendingStore) Delete(ctx context.Context, ownerID uuid.UUID, fileKey string) error {
	return s.redis.Delete(ctx, pendingKey(ownerID, fileKey))
}
