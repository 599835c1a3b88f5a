package lead

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
	"github.com/zapllo/crm-backend/internal/pipeline"
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
		log.Warn("lead create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("lead create: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	lead, err := h.service.Create(ctx, principal.OrganizationID, principal.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrNotFound):
			transport.WriteError(w, http.StatusNotFound, "pipeline not found", nil)
		case errors.Is(err, ErrInvalidStage):
			transport.WriteError(w, http.StatusBadRequest, "stage does not belong to pipeline", nil)
		default:
			log.Error("lead create: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("lead create: ok", slog.String("lead_id", lead.ID))
	transport.WriteJSON(w, http.StatusCreated, lead)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	page, err := httpx.ParsePage(r.URL.Query(), 20, 100)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filter := ListFilter{
		PipelineID: strings.TrimSpace(r.URL.Query().Get("pipeline_id")),
		StageID:    strings.TrimSpace(r.URL.Query().Get("stage_id")),
		AssigneeID: strings.TrimSpace(r.URL.Query().Get("assignee_id")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, principal.OrganizationID, filter, page.Limit, page.Offset)
	if err != nil {
		log.Error("lead list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  page.Limit,
		"offset": page.Offset,
		"total":  total,
	})
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

	lead, err := h.service.Get(ctx, principal.OrganizationID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
			return
		}
		log.Error("lead get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, lead)
}

// CloseFollowup handles PATCH /leads/{id} with a remark body, recording a
// "Followup Closed" timeline entry.
func (h *Handler) CloseFollowup(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req CloseFollowupRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("lead close followup: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("lead close followup: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lead, err := h.service.CloseFollowup(ctx, principal.OrganizationID, id, principal.UserID, req.Remark)
	if err != nil {
		h.writeMutationError(w, log, "lead close followup", err)
		return
	}

	log.Info("lead close followup: ok", slog.String("lead_id", id))
	transport.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handler) MoveStage(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req MoveStageRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("lead stage move: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("lead stage move: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lead, err := h.service.MoveStage(ctx, principal.OrganizationID, id, principal.UserID, req)
	if err != nil {
		h.writeMutationError(w, log, "lead stage move", err)
		return
	}

	log.Info("lead stage move: ok", slog.String("lead_id", id), slog.String("stage_id", lead.StageID))
	transport.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req AssignRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("lead assign: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("lead assign: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lead, err := h.service.Assign(ctx, principal.OrganizationID, id, principal.UserID, req)
	if err != nil {
		h.writeMutationError(w, log, "lead assign", err)
		return
	}

	log.Info("lead assign: ok", slog.String("lead_id", id))
	transport.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handler) AppendTimelineEntry(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req TimelineEntryRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("timeline append: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("timeline append: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lead, err := h.service.AppendTimelineEntry(ctx, principal.OrganizationID, id, principal.UserID, req)
	if err != nil {
		h.writeMutationError(w, log, "timeline append", err)
		return
	}

	log.Info("timeline append: ok", slog.String("lead_id", id))
	transport.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	report, err := h.service.Report(ctx, principal.OrganizationID)
	if err != nil {
		log.Error("lead report: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) writeMutationError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
	case errors.Is(err, ErrConflict):
		transport.WriteError(w, http.StatusConflict, "lead was modified concurrently, retry", nil)
	case errors.Is(err, ErrInvalidStage):
		transport.WriteError(w, http.StatusBadRequest, "stage does not belong to pipeline", nil)
	case errors.Is(err, ErrRemarkMissing):
		transport.WriteError(w, http.StatusBadRequest, "remark required", map[string]string{"remark": "required"})
	case errors.Is(err, pipeline.ErrNotFound):
		transport.WriteError(w, http.StatusNotFound, "pipeline not found", nil)
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
