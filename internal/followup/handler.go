package followup

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
	"github.com/zapllo/crm-backend/internal/transport"
	"github.com/zapllo/crm-backend/internal/validation"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("followup create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("followup create: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	f, rejected, err := h.service.Create(ctx, principal.OrganizationID, principal.UserID, req)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
			return
		}
		log.Error("followup create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("followup create: ok",
		slog.String("followup_id", f.ID),
		slog.Int("reminders", len(f.Reminders)),
		slog.Int("rejected_reminders", len(rejected)),
	)
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"followup":           f,
		"rejected_reminders": rejected,
	})
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListMine(ctx, principal.OrganizationID, principal.UserID)
	if err != nil {
		log.Error("followup list mine: database error", slog.String("error", err.Error()))
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
		log.Error("followup list for lead: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req UpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("followup update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	f, err := h.service.Update(ctx, principal.OrganizationID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			transport.WriteError(w, http.StatusNotFound, "followup not found", nil)
		case errors.Is(err, ErrClosed):
			transport.WriteError(w, http.StatusBadRequest, "followup already closed", nil)
		default:
			log.Error("followup update: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("followup update: ok", slog.String("followup_id", id))
	transport.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req CloseRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("followup close: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("followup close: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	f, err := h.service.Close(ctx, principal.OrganizationID, id, req.Remark)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "followup not found", nil)
			return
		}
		log.Error("followup close: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("followup close: ok", slog.String("followup_id", id))
	transport.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, principal.OrganizationID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "followup not found", nil)
			return
		}
		log.Error("followup delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("followup delete: ok", slog.String("followup_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
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
