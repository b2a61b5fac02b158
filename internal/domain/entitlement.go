// This file defines per-account entitlement state, consumption events,
// and the quota gate admission decision.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind identifies the metered resource being consumed.
type ResourceKind string

const (
	ResourceGeneration ResourceKind = "generation"
	ResourceDownload   ResourceKind = "download"
)

// AccountEntitlement is the mutable per-user entitlement state. Bonus
// counters only decrease by one per admitted consumption past the plan
// limit; WindowStart, when set (on a plan change), overrides the
// calendar-month boundary for usage counting.
type AccountEntitlement struct {
	UserID           uuid.UUID
	PlanPriceID      string
	GenerationBonus  int
	PDFBonus         int
	WindowStart      *time.Time
	StripeCustomerID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Bonus returns the remaining bonus credits for a resource kind.
func (a *AccountEntitlement) Bonus(kind ResourceKind) int {
	if kind == ResourceDownload {
		return a.PDFBonus
	}
	return a.GenerationBonus
}

// ConsumptionEvent is an immutable record of one unit of resource use.
// Events are append-only; the count of events inside the current window
// is the sole source of truth for usage (no running counter is stored).
type ConsumptionEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      ResourceKind
	Ref       string // subject for generations, file key for downloads
	CreatedAt time.Time
}

// Usage is a point-in-time read of consumption against the window.
type Usage struct {
	Count int // events inside the current accounting window
	Bonus int // bonus credits remaining
}

// WindowStartFor returns the start of the current accounting window: the
// explicit override when set, otherwise the first of the current calendar
// month at 00:00 UTC.
func WindowStartFor(override *time.Time, now time.Time) time.Time {
	if override != nil {
		return *override
	}
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// GateDecision is the outcome of a quota gate evaluation. When Admitted
// and DebitBonus are both set, one bonus credit must be debited after the
// resource has been produced, never before.
type GateDecision struct {
	Admitted   bool
	DebitBonus bool
	Used       int // count observed at decision time
	Allowed    int // limit + bonus remaining + bonus inferred as already used
}

// EvaluateGate runs the quota admission algorithm.
//
// Bonus credits consumed in the past are not tracked in a ledger; they
// are inferred from the overage between the observed count and the plan
// limit. The only stored bonus value is "bonus remaining".
func EvaluateGate(planLimit, currentCount, bonusRemaining int) GateDecision {
	bonusAlreadyUsed := currentCount - planLimit
	if bonusAlreadyUsed < 0 {
		bonusAlreadyUsed = 0
	}
	totalAllowed := planLimit + bonusRemaining + bonusAlreadyUsed

	d := GateDecision{
		Used:    currentCount,
		Allowed: totalAllowed,
	}
	if currentCount >= totalAllowed {
		return d
	}
	d.Admitted = true
	d.DebitBonus = currentCount >= planLimit && bonusRemaining > 0
	return d
}
