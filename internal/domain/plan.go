// Package domain contains core business types and interfaces.
//
// This file defines subscription plans and the resolver that maps Stripe
// price IDs to plan allowances.
package domain

// Plan defines the monthly allowances for a subscription plan.
// Plans are configuration, never mutated at runtime.
type Plan struct {
	ID                 string
	MonthlyGenerations int
	MonthlyPDFs        int
	IsFree             bool
}

// Built-in plans. Allowances count worksheet generations and PDF
// downloads per accounting window.
var (
	PlanFree = Plan{
		ID:                 "free",
		MonthlyGenerations: 3,
		MonthlyPDFs:        3,
		IsFree:             true,
	}
	PlanStarter = Plan{
		ID:                 "starter",
		MonthlyGenerations: 30,
		MonthlyPDFs:        30,
	}
	PlanPro = Plan{
		ID:                 "pro",
		MonthlyGenerations: 150,
		MonthlyPDFs:        150,
	}
)

// PlanCatalog resolves Stripe price IDs to plans. It is built once at
// startup from configured price IDs and passed to whatever needs it.
type PlanCatalog struct {
	byPriceID map[string]Plan
}

// NewPlanCatalog creates a catalog from price ID -> plan pairs. Empty
// price IDs are skipped so unconfigured plans simply never resolve.
func NewPlanCatalog(prices map[string]Plan) *PlanCatalog {
	byPriceID := make(map[string]Plan, len(prices))
	for priceID, plan := range prices {
		if priceID != "" {
			byPriceID[priceID] = plan
		}
	}
	return &PlanCatalog{byPriceID: byPriceID}
}

// Resolve returns the plan for a price ID. It is total: an empty or
// unrecognized price ID resolves to the free plan.
func (c *PlanCatalog) Resolve(priceID string) Plan {
	if plan, ok := c.byPriceID[priceID]; ok {
		return plan
	}
	return PlanFree
}

// Limit returns the plan allowance for a resource kind.
func (p Plan) Limit(kind ResourceKind) int {
	if kind == ResourceDownload {
		return p.MonthlyPDFs
	}
	return p.MonthlyGenerations
}
