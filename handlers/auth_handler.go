package handlers

import (
	"net/http"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/services"
)

type AuthHandler struct {
	authService  *services.AuthService
	secureCookie bool
}

func NewAuthHandler(authService *services.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

func (h *AuthHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := decodeJSON(w, r, &input); err != nil {
		fail(w, err)
		return
	}

	user, err := h.authService.Register(r.Context(), input)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "User created", "user": user})
}

func (h *AuthHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		fail(w, err)
		return
	}

	user, token, err := h.authService.Login(r.Context(), input.Email, input.Password, input.Role)
	if err != nil {
		fail(w, err)
		return
	}
	auth.SetSessionCookie(w, token, h.authService.TokenTTL(), h.secureCookie)
	writeJSON(w, http.StatusOK, envelope{
		"message":  "Authenticated",
		"redirect": user.Role.HomePath(),
		"user":     user,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookie)
	writeJSON(w, http.StatusOK, envelope{"message": "Logged out"})
}
