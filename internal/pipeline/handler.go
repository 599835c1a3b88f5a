package pipeline

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
		log.Warn("pipeline create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("pipeline create: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	p, err := h.service.Create(ctx, principal.OrganizationID, req)
	if err != nil {
		log.Error("pipeline create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("pipeline create: ok", slog.String("pipeline_id", p.ID))
	transport.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.List(ctx, principal.OrganizationID)
	if err != nil {
		log.Error("pipeline list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
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

	p, err := h.service.Get(ctx, principal.OrganizationID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "pipeline not found", nil)
			return
		}
		log.Error("pipeline get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, p)
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
			transport.WriteError(w, http.StatusNotFound, "pipeline not found", nil)
			return
		}
		log.Error("pipeline delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("pipeline delete: ok", slog.String("pipeline_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) AddStage(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req AddStageRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("stage add: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("stage add: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.service.AddStage(ctx, principal.OrganizationID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStageType):
			transport.WriteFieldError(w, "type", "oneof")
		case errors.Is(err, ErrWonLostExclusive), errors.Is(err, ErrFlagsOnOpenStage):
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, ErrNotFound):
			transport.WriteError(w, http.StatusNotFound, "pipeline not found", nil)
		default:
			log.Error("stage add: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("stage add: ok", slog.String("pipeline_id", id))
	transport.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) BulkDeleteStages(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req BulkDeleteStagesRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("stage bulk delete: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("stage bulk delete: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.BulkDeleteStages(ctx, principal.OrganizationID, id, req.StageIDs); err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "pipeline not found", nil)
			return
		}
		log.Error("stage bulk delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("stage bulk delete: ok", slog.String("pipeline_id", id), slog.Int("count", len(req.StageIDs)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) AddCustomField(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req AddCustomFieldRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("custom field add: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("custom field add: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.service.AddCustomField(ctx, principal.OrganizationID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidFieldType):
			transport.WriteFieldError(w, "type", "oneof")
		case errors.Is(err, ErrNotFound):
			transport.WriteError(w, http.StatusNotFound, "pipeline not found", nil)
		default:
			log.Error("custom field add: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("custom field add: ok", slog.String("pipeline_id", id))
	transport.WriteJSON(w, http.StatusOK, p)
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
