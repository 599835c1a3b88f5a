package organization

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zapllo/crm-backend/internal/auth"
	"github.com/zapllo/crm-backend/internal/httpx"
	"github.com/zapllo/crm-backend/internal/middleware"
	"github.com/zapllo/crm-backend/internal/transport"
	"github.com/zapllo/crm-backend/internal/validation"
)

const refreshCookie = "refresh_token"

type Handler struct {
	service      *Service
	jwt          *auth.Manager
	val          *validation.Validator
	log          *slog.Logger
	cookieSecure bool
}

func NewHandler(service *Service, jwt *auth.Manager, val *validation.Validator, log *slog.Logger, cookieSecure bool) *Handler {
	return &Handler{
		service:      service,
		jwt:          jwt,
		val:          val,
		log:          log,
		cookieSecure: cookieSecure,
	}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req SignupRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("signup: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("signup: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	org, user, err := h.service.Signup(ctx, req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			transport.WriteError(w, http.StatusConflict, "email already registered", nil)
			return
		}
		log.Error("signup: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if err := h.issueSession(w, user); err != nil {
		log.Error("signup: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("signup: ok", slog.String("organization_id", org.ID), slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"organization": org,
		"user":         user,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("login: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.Login(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		log.Error("login: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if err := h.issueSession(w, user); err != nil {
		log.Error("login: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("login: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	claims, err := h.jwt.Parse(cookie.Value)
	if err != nil {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.GetUser(ctx, claims.OrganizationID, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		log.Error("refresh: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if err := h.issueSession(w, user); err != nil {
		log.Error("refresh: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("refresh: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	expire := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expire,
		MaxAge:   -1,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expire,
		MaxAge:   -1,
	})
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	org, err := h.service.Get(ctx, principal.OrganizationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "organization not found", nil)
			return
		}
		log.Error("organization get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) UpdateFeatures(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var req UpdateFeaturesRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("organization features: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("organization features: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	org, err := h.service.UpdateFeatures(ctx, principal.OrganizationID, req.Features)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "organization not found", nil)
			return
		}
		log.Error("organization features: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("organization features: ok", slog.String("organization_id", org.ID))
	transport.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	users, err := h.service.ListUsers(ctx, principal.OrganizationID)
	if err != nil {
		log.Error("users list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": users})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var req CreateUserRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("user create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("user create: validation error")
		transport.WriteValidationError(w, h.val.ValidationErrors(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.CreateUser(ctx, principal.OrganizationID, req)
	if err != nil {
		if errors.Is(err, ErrInvalidRole) {
			transport.WriteFieldError(w, "role", "oneof")
			return
		}
		if errors.Is(err, ErrEmailTaken) {
			transport.WriteError(w, http.StatusConflict, "email already registered", nil)
			return
		}
		log.Error("user create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("user create: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) issueSession(w http.ResponseWriter, user User) error {
	access, err := h.jwt.NewAccessToken(user.ID, user.OrganizationID, user.Role)
	if err != nil {
		return err
	}
	refresh, err := h.jwt.NewRefreshToken(user.ID, user.OrganizationID, user.Role)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.jwt.AccessTTL.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    refresh,
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.jwt.RefreshTTL.Seconds()),
	})
	return nil
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
