package quotation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zapllo/crm-backend/internal/httpx"
	"github.com/zapllo/crm-backend/internal/middleware"
	"github.com/zapllo/crm-backend/internal/organization"
	"github.com/zapllo/crm-backend/internal/transport"
	"github.com/zapllo/crm-backend/internal/validation"
)

// DecisionNotifier mails the creator when a quotation is approved or
// rejected. Satisfied by notifications.BrevoClient.
type DecisionNotifier interface {
	SendQuotationDecision(ctx context.Context, toEmail, toName, quotationTitle, decision, comment string) (string, error)
}

// Users resolves the creator for decision emails.
type Users interface {
	GetUser(ctx context.Context, orgID, id string) (organization.User, error)
}

type Handler struct {
	service  *Service
	users    Users
	notifier DecisionNotifier
	val      *validation.Validator
	log      *slog.Logger
}

func NewHandler(service *Service, users Users, notifier DecisionNotifier, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		users:    users,
		notifier: notifier,
		val:      val,
		log:      log,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("quotation create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("quotation create: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	q, err := h.service.Create(ctx, principal.OrganizationID, principal.UserID, req)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
			return
		}
		log.Error("quotation create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("quotation create: ok", slog.String("quotation_id", q.ID))
	transport.WriteJSON(w, http.StatusCreated, q)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.service.Get(ctx, principal.OrganizationID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "quotation not found", nil)
			return
		}
		log.Error("quotation get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListMine(ctx, principal.OrganizationID, principal.UserID)
	if err != nil {
		log.Error("quotation list mine: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) ListForLead(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	leadID := strings.TrimSpace(chi.URLParam(r, "id"))
	if leadID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListForLead(ctx, principal.OrganizationID, leadID)
	if err != nil {
		log.Error("quotation list for lead: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.service.Send(ctx, principal.OrganizationID, id, principal.UserID)
	if err != nil {
		h.writeTransitionError(w, log, "quotation send", err)
		return
	}

	log.Info("quotation send: ok", slog.String("quotation_id", id))
	transport.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req ApproveRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("quotation approve: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.service.Approve(ctx, principal.OrganizationID, id, principal.UserID, req.Comment)
	if err != nil {
		h.writeTransitionError(w, log, "quotation approve", err)
		return
	}

	h.notifyDecision(q, StatusApproved, req.Comment)

	log.Info("quotation approve: ok", slog.String("quotation_id", id))
	transport.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req RejectRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("quotation reject: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("quotation reject: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.service.Reject(ctx, principal.OrganizationID, id, principal.UserID, req.Reason)
	if err != nil {
		h.writeTransitionError(w, log, "quotation reject", err)
		return
	}

	h.notifyDecision(q, StatusRejected, req.Reason)

	log.Info("quotation reject: ok", slog.String("quotation_id", id))
	transport.WriteJSON(w, http.StatusOK, q)
}

// notifyDecision emails the creator in the background; a failed email never
// affects the transition that already happened.
func (h *Handler) notifyDecision(q Quotation, decision, comment string) {
	if h.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()

		creator, err := h.users.GetUser(ctx, q.OrganizationID, q.CreatorID)
		if err != nil {
			h.log.Warn("quotation decision email: creator lookup failed",
				slog.String("quotation_id", q.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		if _, err := h.notifier.SendQuotationDecision(ctx, creator.Email, creator.Name, q.Title, decision, comment); err != nil {
			h.log.Warn("quotation decision email failed",
				slog.String("quotation_id", q.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (h *Handler) writeTransitionError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		transport.WriteError(w, http.StatusNotFound, "quotation not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
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
