// This file implements the Stripe webhook handler for billing events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it
// directly; authentication is the webhook signature.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/worksheetlab/server/internal/billing"
	"github.com/worksheetlab/server/internal/domain"
)

// subscribeBonusCredits is the one-time welcome credit granted when a
// user first moves onto a paid plan.
const subscribeBonusCredits = 5

// WebhookAccounts is the entitlement state the webhook mutates.
type WebhookAccounts interface {
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.AccountEntitlement, error)
	SetPlan(ctx context.Context, userID uuid.UUID, planPriceID string, windowStart *time.Time) error
	GrantBonus(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind, amount int) error
}

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing  billing.Service
	accounts WebhookAccounts
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, accounts WebhookAccounts, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:  billingService,
		accounts: accounts,
		logger:   logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC — no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "customer.subscription.created":
		h.handleSubscriptionChanged(r.Context(), event, true)
	case "customer.subscription.updated":
		h.handleSubscriptionChanged(r.Context(), event, false)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(r.Context(), event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

// handleSubscriptionChanged moves the account onto the subscribed
// plan's price. A plan change resets the accounting window to now so
// the new allowance applies immediately instead of waiting for the
// next calendar month.
func (h *WebhookHandler) handleSubscriptionChanged(ctx context.Context, event stripe.Event, created bool) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err)
		return
	}
	if sub.Customer == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		h.logger.Warn("subscription event missing customer or items", "subscription_id", sub.ID)
		return
	}
	priceID := sub.Items.Data[0].Price.ID

	account, err := h.accounts.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		h.logger.Warn("no account for stripe customer", "customer_id", sub.Customer.ID, "error", err)
		return
	}

	if account.PlanPriceID == priceID {
		return
	}

	now := time.Now().UTC()
	if err := h.accounts.SetPlan(ctx, account.UserID, priceID, &now); err != nil {
		h.logger.Error("failed to set plan", "user_id", account.UserID, "price_id", priceID, "error", err)
		return
	}
	h.logger.Info("plan updated", "user_id", account.UserID, "price_id", priceID, "window_start", now)

	if created {
		for _, kind := range []domain.ResourceKind{domain.ResourceGeneration, domain.ResourceDownload} {
			if err := h.accounts.GrantBonus(ctx, account.UserID, kind, subscribeBonusCredits); err != nil {
				h.logger.Error("failed to grant welcome bonus", "user_id", account.UserID, "kind", kind, "error", err)
			}
		}
	}
}

// handleSubscriptionDeleted drops the account back to the free plan.
// The window override is cleared so counting reverts to calendar months.
func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err)
		return
	}
	if sub.Customer == nil {
		return
	}

	account, err := h.accounts.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		h.logger.Warn("no account for stripe customer", "customer_id", sub.Customer.ID, "error", err)
		return
	}

	if err := h.accounts.SetPlan(ctx, account.UserID, "", nil); err != nil {
		h.logger.Error("failed to downgrade plan", "user_id", account.UserID, "error", err)
		return
	}
	h.logger.Info("subscription ended, reverted to free plan", "user_id", account.UserID)
}
