package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/socialhub/internal/model"
	"github.com/sakif/socialhub/internal/service"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	users  *service.UserService
	cookie CookieConfig
	logger *slog.Logger
}

func NewAuthHandler(users *service.UserService, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		cookie: cookie,
		logger: logger,
	}
}

// AuthResponse is returned by register and login. The token is in the body
// as well as the cookie so non-browser clients can use it.
type AuthResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
}

// HandleRegister creates an account and signs the new user in.
//
// HTTP: POST /api/v1/register
// BODY: {"name": "...", "email": "...", "password": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cookie.set(w, res.Token)
	writeJSON(w, http.StatusCreated, AuthResponse{Success: true, User: res.User, Token: res.Token})
}

// HandleLogin checks the credentials and sets a fresh session cookie.
//
// HTTP: POST /api/v1/login
// BODY: {"email": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.users.Login(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cookie.set(w, res.Token)
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: res.User, Token: res.Token})
}

// HandleLogout expires the session cookie. It needs no valid session.
//
// HTTP: POST or GET /api/v1/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookie.clear(w)
	writeMessage(w, http.StatusOK, "Logged out")
}
