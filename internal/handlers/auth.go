package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

type AuthHandler struct {
	userService services.UserServiceInterface
	authService services.AuthServiceInterface
	secure      bool
}

func NewAuthHandler(userService services.UserServiceInterface, authService services.AuthServiceInterface, secure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		secure:      secure,
	}
}

type RegisterRequest struct {
	Username   string  `json:"username" validate:"required,min=3,max=50,username"`
	Email      string  `json:"email" validate:"required,email,max=255"`
	Password   string  `json:"password" validate:"required,min=8,max=72"`
	Gender     string  `json:"gender" validate:"omitempty,oneof=male female other"`
	CityCode   *string `json:"city_code" validate:"omitempty,max=20"`
	PostalCode *string `json:"postal_code" validate:"omitempty,max=20"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User    *models.User `json:"user,omitempty"`
	Message string       `json:"message,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if errors.Is(err, services.ErrPasswordTooShort) {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := h.userService.Create(r.Context(), models.CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Gender:       models.Gender(req.Gender),
		CityCode:     trimmedOrNil(req.CityCode),
		PostalCode:   trimmedOrNil(req.PostalCode),
	})
	switch {
	case errors.Is(err, services.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, services.ErrUsernameAlreadyExists):
		writeError(w, http.StatusConflict, "Username already taken")
		return
	case errors.Is(err, services.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, "Username must be between 3 and 50 characters")
		return
	case errors.Is(err, services.ErrInvalidGender):
		writeError(w, http.StatusBadRequest, "Gender must be male, female or other")
		return
	case errors.Is(err, services.ErrUnknownLocation):
		writeError(w, http.StatusBadRequest, "Unknown city or neighborhood")
		return
	case err != nil:
		log.Printf("Error creating user: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error creating session: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, AuthResponse{User: user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.authService.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if errors.Is(err, services.ErrUserRestricted) {
		writeError(w, http.StatusForbidden, "Your account has been restricted")
		return
	}
	if err != nil {
		log.Printf("Error authenticating user: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error creating session: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{User: user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.authService.DeleteSession(r.Context(), cookie.Value); err != nil {
			log.Printf("Error deleting session: %v", err)
		}
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: user})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	setSessionCookie(w, token, h.secure)
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func setSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
