package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/worksheetlab/server/internal/domain"
)

// ErrNoBonusRemaining is returned by the debit methods when the bonus
// counter is already at zero.
var ErrNoBonusRemaining = errors.New("no bonus credits remaining")

// AccountRepository handles per-user entitlement state.
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `user_id, plan_price_id, generation_bonus, pdf_bonus, window_start, stripe_customer_id, created_at, updated_at`

// Ensure returns the entitlement row for a user, creating a default free
// row on first sight.
func (r *AccountRepository) Ensure(ctx context.Context, userID uuid.UUID) (*domain.AccountEntitlement, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (user_id, plan_price_id, generation_bonus, pdf_bonus)
		VALUES ($1, '', 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	return r.GetByUserID(ctx, userID)
}

// GetByUserID reads the entitlement row for a user.
func (r *AccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.AccountEntitlement, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1
	`, userID)
	return scanAccount(row)
}

// GetByStripeCustomerID reads the entitlement row for a Stripe customer.
func (r *AccountRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.AccountEntitlement, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE stripe_customer_id = $1
	`, customerID)
	return scanAccount(row)
}

// SetStripeCustomerID stores the Stripe customer handle for a user.
func (r *AccountRepository) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET stripe_customer_id = $1, updated_at = now()
		WHERE user_id = $2
	`, customerID, userID)
	if err != nil {
		return fmt.Errorf("set stripe customer: %w", err)
	}
	return nil
}

// SetPlan updates the plan price ID and, when windowStart is non-nil,
// sets the accounting window override so the new plan's allowance starts
// counting immediately instead of waiting for the next calendar month.
func (r *AccountRepository) SetPlan(ctx context.Context, userID uuid.UUID, planPriceID string, windowStart *time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET plan_price_id = $1, window_start = $2, updated_at = now()
		WHERE user_id = $3
	`, planPriceID, windowStart, userID)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	return nil
}

// GrantBonus adds bonus credits for a resource kind.
func (r *AccountRepository) GrantBonus(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind, amount int) error {
	column, err := bonusColumn(kind)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		UPDATE accounts
		SET `+column+` = `+column+` + $1, updated_at = now()
		WHERE user_id = $2
	`, amount, userID)
	if err != nil {
		return fmt.Errorf("grant bonus: %w", err)
	}
	return nil
}

// DebitBonus decrements the bonus counter for a resource kind by one,
// guarding against going negative. Returns ErrNoBonusRemaining if the
// counter was already zero.
func (r *AccountRepository) DebitBonus(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) error {
	column, err := bonusColumn(kind)
	if err != nil {
		return err
	}
	affected, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET `+column+` = `+column+` - 1, updated_at = now()
		WHERE user_id = $1 AND `+column+` > 0
	`, userID)
	if err != nil {
		return fmt.Errorf("debit bonus: %w", err)
	}
	if affected == 0 {
		return ErrNoBonusRemaining
	}
	return nil
}

func bonusColumn(kind domain.ResourceKind) (string, error) {
	switch kind {
	case domain.ResourceGeneration:
		return "generation_bonus", nil
	case domain.ResourceDownload:
		return "pdf_bonus", nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
}

func scanAccount(row pgx.Row) (*domain.AccountEntitlement, error) {
	var a domain.AccountEntitlement
	err := row.Scan(
		&a.UserID, &a.PlanPriceID, &a.GenerationBonus, &a.PDFBonus,
		&a.WindowStart, &a.StripeCustomerID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("account.get", "account", "")
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}
