package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/service"
)

// AuthHandler serves registration, the JWT token endpoints and /me.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account
//   - HandleToken    → exchange email+password for an access/refresh pair
//   - HandleRefresh  → exchange a refresh token for a new access token
//   - HandleLogout   → blacklist a refresh token
//   - HandleMe       → return the authenticated user's profile
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   svc,
		logger: logger,
	}
}

type registerRequest struct {
	Email     string  `json:"email"`
	Password  *string `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
}

type tokenRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type refreshRequest struct {
	Refresh *string `json:"refresh"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type accessResponse struct {
	Access string `json:"access"`
}

// HandleRegister creates a user.
//
// HTTP: POST /api/register/
// REQUEST BODY: {"email": "...", "password": "...", "first_name": "...", "last_name": "..."}
// RESPONSE: 201 {"id": 1, "email": "...", "first_name": "...", "last_name": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleToken is the login endpoint.
//
// HTTP: POST /api/token/
// REQUEST BODY: {"email": "...", "password": "..."}
// RESPONSE: 200 {"access": "...", "refresh": "..."}, or 401
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	missing := map[string]string{}
	if req.Email == nil {
		missing["email"] = "this field is required"
	}
	if req.Password == nil {
		missing["password"] = "this field is required"
	}
	if err := apperror.InvalidFields(missing); err != nil {
		writeError(w, h.logger, err)
		return
	}

	pair, err := h.auth.Login(r.Context(), *req.Email, *req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// HandleRefresh issues a new access token.
//
// HTTP: POST /api/token/refresh/
// REQUEST BODY: {"refresh": "..."}
// RESPONSE: 200 {"access": "..."}, or 401 for an invalid or blacklisted token
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Refresh == nil {
		writeError(w, h.logger, apperror.ValidationFailed("refresh", "this field is required"))
		return
	}

	access, err := h.auth.Refresh(r.Context(), *req.Refresh)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, accessResponse{Access: access})
}

// HandleLogout blacklists the given refresh token.
//
// HTTP: POST /api/logout/ (authenticated)
// REQUEST BODY: {"refresh_token": "..."}
// RESPONSE: 205 Reset Content with no body; any failure is an empty 400.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	err := decodeJSON(w, r, &req)
	if err == nil {
		err = h.auth.Logout(r.Context(), req.RefreshToken)
	}
	if err != nil {
		if !errors.Is(err, apperror.ErrValidation) {
			h.logger.Error("logout failed", slog.String("error", err.Error()))
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusResetContent)
}

// HandleMe returns the authenticated user.
//
// HTTP: GET /api/me/
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// currentUser returns the user RequireAuth stored in the request context.
func currentUser(r *http.Request) (*model.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, apperror.Unauthorized("authentication required")
	}
	return user, nil
}
