// Package service contains the business logic layer.
//
// This file implements quota admission and usage accounting on top of
// the append-only consumption event tables.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/worksheetlab/server/internal/domain"
	"github.com/worksheetlab/server/internal/repository"
)

// AccountStore is the entitlement state the quota service needs.
type AccountStore interface {
	Ensure(ctx context.Context, userID uuid.UUID) (*domain.AccountEntitlement, error)
	DebitBonus(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) error
}

// UsageStore records and counts consumption events.
type UsageStore interface {
	InsertEvent(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind, ref string) error
	CountSince(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind, since time.Time) (int, error)
}

// DebitQueue holds bonus debits that failed inline and must be retried.
type DebitQueue interface {
	Enqueue(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) error
}

// QuotaMetrics is the subset of metrics the quota service reports.
type QuotaMetrics interface {
	QuotaRejected(kind string)
	BonusDebited(kind string)
}

// UsageReport is the usage surface returned to callers.
type UsageReport struct {
	Generations domain.Usage
	Downloads   domain.Usage
	Plan        domain.Plan
	WindowStart time.Time
}

// QuotaService gates resource consumption against the user's plan
// limits plus bonus credits. Counts are recomputed from events on
// every decision; nothing is cached.
type QuotaService struct {
	accounts AccountStore
	usage    UsageStore
	queue    DebitQueue
	catalog  *domain.PlanCatalog
	metrics  QuotaMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(accounts AccountStore, usage UsageStore, queue DebitQueue, catalog *domain.PlanCatalog, metrics QuotaMetrics, logger *slog.Logger) *QuotaService {
	return &QuotaService{
		accounts: accounts,
		usage:    usage,
		queue:    queue,
		catalog:  catalog,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// GetUsage returns current-window consumption for both metered resources.
func (s *QuotaService) GetUsage(ctx context.Context, userID uuid.UUID) (*UsageReport, error) {
	const op = "quota.get_usage"

	account, err := s.accounts.Ensure(ctx, userID)
	if err != nil {
		return nil, domain.Unavailable(err, op, "entitlement state unavailable")
	}

	windowStart := domain.WindowStartFor(account.WindowStart, s.now())

	genCount, err := s.usage.CountSince(ctx, userID, domain.ResourceGeneration, windowStart)
	if err != nil {
		return nil, domain.Unavailable(err, op, "usage count unavailable")
	}
	dlCount, err := s.usage.CountSince(ctx, userID, domain.ResourceDownload, windowStart)
	if err != nil {
		return nil, domain.Unavailable(err, op, "usage count unavailable")
	}

	return &UsageReport{
		Generations: domain.Usage{Count: genCount, Bonus: account.GenerationBonus},
		Downloads:   domain.Usage{Count: dlCount, Bonus: account.PDFBonus},
		Plan:        s.catalog.Resolve(account.PlanPriceID),
		WindowStart: windowStart,
	}, nil
}

// Authorize runs the admission gate for one unit of the given resource.
// On success the returned decision carries whether a bonus debit is due
// at commit time. A quota rejection is returned as EQUOTA.
func (s *QuotaService) Authorize(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) (domain.GateDecision, error) {
	const op = "quota.authorize"

	account, err := s.accounts.Ensure(ctx, userID)
	if err != nil {
		return domain.GateDecision{}, domain.Unavailable(err, op, "entitlement state unavailable")
	}

	windowStart := domain.WindowStartFor(account.WindowStart, s.now())
	count, err := s.usage.CountSince(ctx, userID, kind, windowStart)
	if err != nil {
		return domain.GateDecision{}, domain.Unavailable(err, op, "usage count unavailable")
	}

	plan := s.catalog.Resolve(account.PlanPriceID)
	decision := domain.EvaluateGate(plan.Limit(kind), count, account.Bonus(kind))
	if !decision.Admitted {
		if s.metrics != nil {
			s.metrics.QuotaRejected(string(kind))
		}
		s.logger.Info("quota rejected",
			"user_id", userID,
			"kind", kind,
			"used", decision.Used,
			"allowed", decision.Allowed,
		)
		return decision, domain.QuotaExceeded(op, kind, decision.Used, decision.Allowed)
	}
	return decision, nil
}

// Peek evaluates the gate without recording a rejection. Used to tell
// the client up front whether a follow-up action would be admitted.
func (s *QuotaService) Peek(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) (bool, error) {
	const op = "quota.peek"

	account, err := s.accounts.Ensure(ctx, userID)
	if err != nil {
		return false, domain.Unavailable(err, op, "entitlement state unavailable")
	}

	windowStart := domain.WindowStartFor(account.WindowStart, s.now())
	count, err := s.usage.CountSince(ctx, userID, kind, windowStart)
	if err != nil {
		return false, domain.Unavailable(err, op, "usage count unavailable")
	}

	plan := s.catalog.Resolve(account.PlanPriceID)
	return domain.EvaluateGate(plan.Limit(kind), count, account.Bonus(kind)).Admitted, nil
}

// Commit records one consumed unit after the resource was produced,
// then applies the bonus debit the decision called for. The event
// insert is the critical write; a failed debit is queued for the
// reconciler rather than failing the request.
func (s *QuotaService) Commit(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind, ref string, decision domain.GateDecision) error {
	const op = "quota.commit"

	if err := s.usage.InsertEvent(ctx, userID, kind, ref); err != nil {
		return domain.Unavailable(err, op, "failed to record consumption")
	}

	if !decision.DebitBonus {
		return nil
	}

	err := s.accounts.DebitBonus(ctx, userID, kind)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.BonusDebited(string(kind))
		}
	case errors.Is(err, repository.ErrNoBonusRemaining):
		// A concurrent request already spent the last credit. The
		// derived accounting absorbs this: the event still counts.
		s.logger.Warn("bonus already exhausted at debit time", "user_id", userID, "kind", kind)
	default:
		s.logger.Error("bonus debit failed, queueing for reconciliation",
			"user_id", userID,
			"kind", kind,
			"error", err,
		)
		if qerr := s.queue.Enqueue(ctx, userID, kind); qerr != nil {
			s.logger.Error("failed to enqueue bonus debit", "user_id", userID, "error", qerr)
		}
	}
	return nil
}
