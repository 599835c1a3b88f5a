package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zapllo/crm-backend/internal/httpx"
	"github.com/zapllo/crm-backend/internal/middleware"
	"github.com/zapllo/crm-backend/internal/transport"
	"github.com/zapllo/crm-backend/internal/validation"
)

type Handler struct {
	service   *Service
	processor *StripeProcessor
	val       *validation.Validator
	log       *slog.Logger
}

func NewHandler(service *Service, processor *StripeProcessor, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{service: service, processor: processor, val: val, log: log}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp, err := h.service.Balance(ctx, principal.OrganizationID)
	if err != nil {
		log.Error("wallet balance: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	txns, err := h.service.Transactions(ctx, principal.OrganizationID)
	if err != nil {
		log.Error("wallet transactions: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var req TopUpRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("wallet topup: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("wallet topup: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	intentID, clientSecret, err := h.processor.CreateTopUpIntent(ctx, principal.OrganizationID, req.Amount)
	if err != nil {
		log.Error("wallet topup: payment provider error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadGateway, "payment provider error", nil)
		return
	}

	log.Info("wallet topup: intent created",
		slog.String("organization_id", principal.OrganizationID),
		slog.String("payment_id", intentID),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"payment_id":    intentID,
		"client_secret": clientSecret,
	})
}

// HandleStripeWebhook credits the wallet when a top-up PaymentIntent
// succeeds. The route is unauthenticated; the signature check stands in for
// auth, and the organization comes from the intent metadata.
func (h *Handler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid request", nil)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		log.Warn("stripe webhook: missing signature header")
		transport.WriteError(w, http.StatusBadRequest, "missing Stripe-Signature header", nil)
		return
	}

	event, err := h.processor.VerifyEvent(payload, signature)
	if err != nil {
		log.Warn("stripe webhook: signature verification failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid signature", nil)
		return
	}

	if event.Type != "payment_intent.succeeded" {
		transport.WriteJSON(w, http.StatusOK, map[string]string{"message": "ignored"})
		return
	}

	var intent struct {
		ID       string            `json:"id"`
		Amount   int64             `json:"amount"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		log.Warn("stripe webhook: malformed payment intent", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "malformed event", nil)
		return
	}

	if intent.Metadata["purpose"] != "wallet_topup" {
		transport.WriteJSON(w, http.StatusOK, map[string]string{"message": "ignored"})
		return
	}
	orgID := intent.Metadata["organization_id"]
	if orgID == "" {
		log.Warn("stripe webhook: payment intent without organization", slog.String("payment_id", intent.ID))
		transport.WriteError(w, http.StatusBadRequest, "missing organization metadata", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if _, err := h.service.Credit(ctx, orgID, intent.Amount, "Wallet top-up", intent.ID, ""); err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			transport.WriteJSON(w, http.StatusOK, map[string]string{"message": "already credited"})
			return
		}
		log.Error("stripe webhook: failed to credit wallet",
			slog.String("organization_id", orgID),
			slog.String("payment_id", intent.ID),
			slog.String("error", err.Error()),
		)
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("stripe webhook: wallet credited",
		slog.String("organization_id", orgID),
		slog.String("payment_id", intent.ID),
		slog.Int64("amount", intent.Amount),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
