package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ryokrieger/CityConnect/internal/handlers"
	"github.com/ryokrieger/CityConnect/internal/logging"
	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (uuid.UUID, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type AuthMiddleware struct {
	sessions SessionValidator
	users    UserLookup
	secure   bool
}

func NewAuthMiddleware(sessions SessionValidator, users UserLookup, secure bool) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, users: users, secure: secure}
}

// Authenticate attaches the session user to the request context when the
// session cookie is valid. Requests without a usable session continue
// anonymously; restricted accounts are treated as signed out.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(handlers.SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.resolve(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, services.ErrSessionNotFound) && !errors.Is(err, services.ErrUserNotFound) {
				logging.Error("Session lookup failed", map[string]interface{}{"error": err.Error()})
			}
			m.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if user.IsRestricted {
			m.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.SetUserInContext(r.Context(), user)))
	})
}

func (m *AuthMiddleware) resolve(ctx context.Context, token string) (*models.User, error) {
	userID, err := m.sessions.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.users.GetByID(ctx, userID)
}

func (m *AuthMiddleware) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     handlers.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin sessions. Admin services check the flag
// again against the database.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := handlers.GetUserFromContext(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !user.IsAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
