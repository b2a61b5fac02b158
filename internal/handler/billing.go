package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/worksheetlab/server/internal/auth"
	"github.com/worksheetlab/server/internal/billing"
	"github.com/worksheetlab/server/internal/domain"
)

// BillingAccounts is the entitlement state the billing handler touches.
type BillingAccounts interface {
	Ensure(ctx context.Context, userID uuid.UUID) (*domain.AccountEntitlement, error)
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
}

// BillingHandler serves checkout and customer portal redirects.
//
// Routes (behind auth):
//   - POST /api/billing/checkout
//   - POST /api/billing/portal
type BillingHandler struct {
	billing  billing.Service
	accounts BillingAccounts
	logger   *slog.Logger
}

// NewBillingHandler creates a new BillingHandler. billingService may be
// nil when Stripe is not configured; routes then respond 503.
func NewBillingHandler(billingService billing.Service, accounts BillingAccounts, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{billing: billingService, accounts: accounts, logger: logger}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/billing/checkout", h.HandleCheckout)
	mux.HandleFunc("POST /api/billing/portal", h.HandlePortal)
}

type checkoutRequest struct {
	PriceID    string `json:"price_id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// HandleCheckout creates a Stripe Checkout session for a paid plan,
// bootstrapping the Stripe customer on first use.
func (h *BillingHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	if h.billing == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "billing not configured"})
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !h.billing.KnownPriceID(req.PriceID) {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.checkout", "unknown price ID"))
		return
	}

	account, err := h.accounts.Ensure(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	customerID := account.StripeCustomerID
	if customerID == "" {
		customerID, err = h.billing.CreateCustomer(req.Email, req.Name)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Unavailable(err, "billing.checkout", "failed to create billing customer"))
			return
		}
		if err := h.accounts.SetStripeCustomerID(r.Context(), userID, customerID); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}

	url, err := h.billing.CreateCheckoutSession(customerID, req.PriceID, req.SuccessURL, req.CancelURL)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, "billing.checkout", "failed to create checkout session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

type portalRequest struct {
	ReturnURL string `json:"return_url"`
}

// HandlePortal creates a Stripe Customer Portal session.
func (h *BillingHandler) HandlePortal(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	if h.billing == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "billing not configured"})
		return
	}

	var req portalRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.Ensure(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if account.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.portal", "no billing account yet"))
		return
	}

	url, err := h.billing.CreatePortalSession(account.StripeCustomerID, req.ReturnURL)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, "billing.portal", "failed to create portal session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}
