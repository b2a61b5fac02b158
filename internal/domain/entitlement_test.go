package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateGate(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		count       int
		bonus       int
		wantAdmit   bool
		wantDebit   bool
		wantAllowed int
	}{
		// Within plan limit, no bonus involvement
		{"under limit", 2, 1, 0, true, false, 2},
		{"at limit no bonus", 2, 2, 0, false, false, 2},

		// Bonus extends the allowance past the plan limit
		{"at limit with bonus", 2, 2, 1, true, true, 3},
		{"over limit bonus exhausted", 2, 3, 0, false, false, 3},

		// Past bonus usage is inferred from the overage, not a ledger:
		// count=3 with limit=2 means one bonus was already spent, so a
		// single remaining bonus still admits exactly one more.
		{"overage plus remaining bonus", 2, 3, 1, true, true, 4},
		{"overage bonus spent again", 2, 4, 1, true, true, 5},

		// Zero plan limit: bonus alone governs admission
		{"zero limit with bonus", 0, 0, 2, true, true, 2},
		{"zero limit bonus exhausted", 0, 2, 0, false, false, 2},

		// Unused bonus below the limit must not trigger a debit
		{"bonus untouched under limit", 5, 3, 2, true, false, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EvaluateGate(tt.limit, tt.count, tt.bonus)
			assert.Equal(t, tt.wantAdmit, d.Admitted)
			assert.Equal(t, tt.wantDebit, d.DebitBonus)
			assert.Equal(t, tt.wantAllowed, d.Allowed)
			assert.Equal(t, tt.count, d.Used)
		})
	}
}

func TestEvaluateGate_EndToEndScenario(t *testing.T) {
	// Plan limit 2, bonus 1, two prior events: totalAllowed = 2+(1+0) = 3.
	d := EvaluateGate(2, 2, 1)
	assert.True(t, d.Admitted)
	assert.True(t, d.DebitBonus)
	assert.Equal(t, 3, d.Allowed)

	// Fourth request: count=3, bonus debited to 0 -> rejected.
	d = EvaluateGate(2, 3, 0)
	assert.False(t, d.Admitted)
	assert.False(t, d.DebitBonus)
}

func TestWindowStartFor(t *testing.T) {
	now := time.Date(2025, time.March, 18, 14, 30, 0, 0, time.UTC)

	t.Run("defaults to first of month", func(t *testing.T) {
		start := WindowStartFor(nil, now)
		assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), start)
	})

	t.Run("explicit override wins", func(t *testing.T) {
		upgrade := time.Date(2025, time.March, 10, 9, 15, 0, 0, time.UTC)
		start := WindowStartFor(&upgrade, now)
		assert.Equal(t, upgrade, start)
	})

	t.Run("override is preferred even before month start", func(t *testing.T) {
		// An override from a previous month still governs; resetting it
		// at the month boundary is the billing webhook's job.
		upgrade := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
		start := WindowStartFor(&upgrade, now)
		assert.Equal(t, upgrade, start)
	})

	t.Run("non-UTC now is normalized", func(t *testing.T) {
		loc := time.FixedZone("CST", -6*3600)
		local := time.Date(2025, time.March, 1, 2, 0, 0, 0, loc) // March 1 08:00 UTC
		start := WindowStartFor(nil, local)
		assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), start)
	})
}

func TestPlanCatalog_Resolve(t *testing.T) {
	catalog := NewPlanCatalog(map[string]Plan{
		"price_starter": PlanStarter,
		"price_pro":     PlanPro,
		"":              PlanPro, // must be ignored
	})

	assert.Equal(t, PlanStarter, catalog.Resolve("price_starter"))
	assert.Equal(t, PlanPro, catalog.Resolve("price_pro"))
	assert.Equal(t, PlanFree, catalog.Resolve(""))
	assert.Equal(t, PlanFree, catalog.Resolve("price_unknown"))
}

func TestPlan_Limit(t *testing.T) {
	p := Plan{MonthlyGenerations: 7, MonthlyPDFs: 4}
	assert.Equal(t, 7, p.Limit(ResourceGeneration))
	assert.Equal(t, 4, p.Limit(ResourceDownload))
}
