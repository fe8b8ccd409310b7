package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/socialhub/internal/apperror"
	"github.com/sakif/socialhub/internal/auth"
	"github.com/sakif/socialhub/internal/model"
	"github.com/sakif/socialhub/internal/service"
)

// UserHandler serves the authenticated profile and follow endpoints. Every
// route is mounted behind auth.RequireAuth.
type UserHandler struct {
	users  *service.UserService
	cookie CookieConfig
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, cookie CookieConfig, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		cookie: cookie,
		logger: logger,
	}
}

type profileResponse struct {
	Success bool           `json:"success"`
	User    *model.Profile `json:"user"`
}

type usersResponse struct {
	Success bool         `json:"success"`
	Users   []model.User `json:"users"`
}

// HandleFollow toggles whether the caller follows {id}.
//
// HTTP: PUT /api/v1/follow/{id}
func (h *UserHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	following, err := h.users.ToggleFollow(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if following {
		writeMessage(w, http.StatusOK, "User followed")
		return
	}
	writeMessage(w, http.StatusOK, "User Unfollowed")
}

// HandleUpdatePassword changes the caller's password.
//
// HTTP: PUT /api/v1/update/password
// BODY: {"oldPassword": "...", "newPassword": "..."}
func (h *UserHandler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var in service.UpdatePasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.users.UpdatePassword(r.Context(), userID, in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeMessage(w, http.StatusOK, "Password changed successfully")
}

// HandleUpdateProfile changes the caller's name and/or email.
//
// HTTP: PUT /api/v1/update/profile
// BODY: {"name": "...", "email": "..."} (either may be omitted)
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var in service.UpdateProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.users.UpdateProfile(r.Context(), userID, in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeMessage(w, http.StatusOK, "Profile updated")
}

// HandleDeleteMe deletes the caller's account, posts and follow edges, then
// clears the session cookie.
//
// HTTP: DELETE /api/v1/delete/me
func (h *UserHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.users.DeleteProfile(r.Context(), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cookie.clear(w)
	writeMessage(w, http.StatusOK, "Profile deleted")
}

// HandleMe returns the caller's profile with posts populated.
//
// HTTP: GET /api/v1/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.users.MyProfile(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Success: true, User: profile})
}

// HandleGetUser returns another user's profile with posts populated.
//
// HTTP: GET /api/v1/user/{id}
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.UserProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Success: true, User: profile})
}

// HandleListUsers returns every registered user.
//
// HTTP: GET /api/v1/users
func (h *UserHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, usersResponse{Success: true, Users: users})
}

// callerID reads the id RequireAuth stored. It only fails when a route was
// mounted without the middleware.
func callerID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, logger, apperror.Unauthorized("please login first"))
		return "", false
	}
	return id, true
}
