package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksheetlab/server/internal/domain"
	"github.com/worksheetlab/server/internal/repository"
)

type fakeQueue struct {
	mu       sync.Mutex
	pending  []repository.PendingDebit
	deleted  []uuid.UUID
	dequeues int
	err      error
}

func (q *fakeQueue) Dequeue(ctx context.Context, limit int) ([]repository.PendingDebit, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dequeues++
	if q.err != nil {
		return nil, q.err
	}
	if limit > len(q.pending) {
		limit = len(q.pending)
	}
	batch := make([]repository.PendingDebit, limit)
	copy(batch, q.pending[:limit])
	for i := range batch {
		batch[i].Attempts++
	}
	return batch, nil
}

func (q *fakeQueue) Delete(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, id)
	return nil
}

type fakeDebitor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *fakeDebitor) DebitBonus(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.err
}

func pendingDebit(attempts int) repository.PendingDebit {
	return repository.PendingDebit{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Kind:      domain.ResourceGeneration,
		Attempts:  attempts,
		CreatedAt: time.Now().UTC(),
	}
}

func testReconciler(queue *fakeQueue, accounts *fakeDebitor) *Reconciler {
	return NewReconciler(queue, accounts, DefaultConfig(), slog.New(slog.DiscardHandler))
}

func TestReconcile_AppliedDebitIsRetired(t *testing.T) {
	queue := &fakeQueue{}
	accounts := &fakeDebitor{}
	r := testReconciler(queue, accounts)

	d := pendingDebit(1)
	r.reconcile(context.Background(), d)

	assert.Equal(t, 1, accounts.calls)
	require.Len(t, queue.deleted, 1)
	assert.Equal(t, d.ID, queue.deleted[0])
}

func TestReconcile_ExhaustedBalanceIsRetired(t *testing.T) {
	queue := &fakeQueue{}
	accounts := &fakeDebitor{err: repository.ErrNoBonusRemaining}
	r := testReconciler(queue, accounts)

	d := pendingDebit(1)
	r.reconcile(context.Background(), d)

	// Nothing left to take; retrying would never succeed
	require.Len(t, queue.deleted, 1)
	assert.Equal(t, d.ID, queue.deleted[0])
}

func TestReconcile_TransientFailureStaysQueued(t *testing.T) {
	queue := &fakeQueue{}
	accounts := &fakeDebitor{err: errors.New("connection reset")}
	r := testReconciler(queue, accounts)

	r.reconcile(context.Background(), pendingDebit(1))

	assert.Empty(t, queue.deleted, "a retryable debit must stay in the queue")
}

func TestReconcile_DroppedAfterMaxAttempts(t *testing.T) {
	queue := &fakeQueue{}
	accounts := &fakeDebitor{err: errors.New("connection reset")}
	r := testReconciler(queue, accounts)

	d := pendingDebit(maxDebitAttempts)
	r.reconcile(context.Background(), d)

	require.Len(t, queue.deleted, 1, "repeatedly failing debits are dropped, not retried forever")
	assert.Equal(t, d.ID, queue.deleted[0])
}

func TestRunBatch_DequeueFailureIsTolerated(t *testing.T) {
	queue := &fakeQueue{err: errors.New("dial tcp: connection refused")}
	accounts := &fakeDebitor{}
	r := testReconciler(queue, accounts)

	r.runBatch(context.Background())

	assert.Zero(t, accounts.calls)
}

func TestRunBatch_ProcessesWholeBatch(t *testing.T) {
	queue := &fakeQueue{pending: []repository.PendingDebit{
		pendingDebit(1), pendingDebit(1), pendingDebit(2),
	}}
	accounts := &fakeDebitor{}
	r := testReconciler(queue, accounts)

	r.runBatch(context.Background())

	assert.Equal(t, 3, accounts.calls)
	assert.Len(t, queue.deleted, 3)
}

func TestReconciler_StartStop(t *testing.T) {
	queue := &fakeQueue{pending: []repository.PendingDebit{pendingDebit(1)}}
	accounts := &fakeDebitor{}
	config := Config{
		PollInterval:    10 * time.Millisecond,
		BatchSize:       5,
		ShutdownTimeout: time.Second,
	}
	r := NewReconciler(queue, accounts, config, slog.New(slog.DiscardHandler))

	r.Start(context.Background())

	require.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return queue.dequeues > 0
	}, time.Second, 5*time.Millisecond, "the loop should poll the queue")

	r.Stop()

	queue.mu.Lock()
	after := queue.dequeues
	queue.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	queue.mu.Lock()
	defer queue.mu.Unlock()
	assert.Equal(t, after, queue.dequeues, "no polling after Stop")
}
