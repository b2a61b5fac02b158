// Package worker runs the background bonus-debit reconciler.
//
// When a request admits a user past their plan limit, the bonus credit
// is debited after the worksheet is produced. If that debit fails, the
// request still succeeds and the debit is queued; this worker retries
// queued debits until they land or the balance is already gone.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/worksheetlab/server/internal/domain"
	"github.com/worksheetlab/server/internal/metrics"
	"github.com/worksheetlab/server/internal/repository"
)

// maxDebitAttempts is how many times a queued debit is retried before
// it is dropped with an error log for manual follow-up.
const maxDebitAttempts = 5

// DebitSource supplies and retires queued debits.
type DebitSource interface {
	Dequeue(ctx context.Context, limit int) ([]repository.PendingDebit, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Debitor applies a single bonus debit.
type Debitor interface {
	DebitBonus(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) error
}

// Config controls the reconciler loop.
type Config struct {
	PollInterval    time.Duration
	BatchSize       int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible reconciler defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:    30 * time.Second,
		BatchSize:       20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Reconciler polls the debit queue and retries failed bonus debits.
type Reconciler struct {
	queue    DebitSource
	accounts Debitor
	config   Config
	logger   *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewReconciler creates a reconciler. Start it with Start() and stop
// it with Stop().
func NewReconciler(queue DebitSource, accounts Debitor, config Config, logger *slog.Logger) *Reconciler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	return &Reconciler{
		queue:    queue,
		accounts: accounts,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the polling loop in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
	r.logger.Info("debit reconciler started", "poll_interval", r.config.PollInterval)
}

// Stop signals the loop to exit and waits up to ShutdownTimeout.
func (r *Reconciler) Stop() {
	close(r.stopCh)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("debit reconciler stopped")
	case <-time.After(r.config.ShutdownTimeout):
		r.logger.Warn("debit reconciler shutdown timeout exceeded")
	}
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runBatch(ctx)
		}
	}
}

// runBatch processes one dequeue of pending debits.
func (r *Reconciler) runBatch(ctx context.Context) {
	pending, err := r.queue.Dequeue(ctx, r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to dequeue pending debits", "error", err)
		return
	}

	for _, d := range pending {
		r.reconcile(ctx, d)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, d repository.PendingDebit) {
	err := r.accounts.DebitBonus(ctx, d.UserID, d.Kind)
	switch {
	case err == nil:
		metrics.DebitReconciliations.WithLabelValues("applied").Inc()
	case errors.Is(err, repository.ErrNoBonusRemaining):
		// The balance hit zero some other way; nothing left to take.
		metrics.DebitReconciliations.WithLabelValues("exhausted").Inc()
	default:
		metrics.DebitReconciliations.WithLabelValues("failed").Inc()
		if d.Attempts < maxDebitAttempts {
			r.logger.Warn("bonus debit retry failed",
				"user_id", d.UserID,
				"kind", d.Kind,
				"attempts", d.Attempts,
				"error", err,
			)
			return
		}
		r.logger.Error("dropping bonus debit after repeated failures",
			"user_id", d.UserID,
			"kind", d.Kind,
			"attempts", d.Attempts,
			"error", err,
		)
	}

	if err := r.queue.Delete(ctx, d.ID); err != nil {
		r.logger.Error("failed to delete reconciled debit", "id", d.ID, "error", err)
	}
}
