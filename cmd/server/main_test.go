package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ryokrieger/CityConnect/internal/handlers"
	"github.com/ryokrieger/CityConnect/internal/middleware"
	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/testutil"
)

type exhaustedCounter struct{}

func (exhaustedCounter) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 100, nil
}

func testRouter(t *testing.T, user *models.User) http.Handler {
	t.Helper()
	auth := middleware.NewAuthMiddleware(nil, nil, false)
	limiter := middleware.NewRateLimiter(exhaustedCounter{}, "login", 5, time.Minute, nil, true)

	mux := newRouter(routes{
		health:       handlers.NewHealthHandler(nil, nil),
		auth:         handlers.NewAuthHandler(nil, nil, false),
		providerAuth: handlers.NewProviderAuthHandler(nil, nil, nil, nil, false),
		profile:      handlers.NewProfileHandler(nil, nil),
		reference:    handlers.NewReferenceHandler(nil, nil),
		friend:       handlers.NewFriendHandler(nil, nil),
		rating:       handlers.NewRatingHandler(nil),
		message:      handlers.NewMessageHandler(nil),
		group:        handlers.NewGroupHandler(nil),
		event:        handlers.NewEventHandler(nil),
		admin:        handlers.NewAdminHandler(nil, nil, nil),
		metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),

		requireSession: auth.RequireSession,
		requireAdmin:   auth.RequireAdmin,
		loginLimit:     limiter.Middleware,
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != nil {
			r = r.WithContext(handlers.SetUserInContext(r.Context(), user))
		}
		mux.ServeHTTP(w, r)
	})
}

func TestRouter_PublicEndpoints(t *testing.T) {
	router := testRouter(t, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/live", http.StatusOK},
		{http.MethodGet, "/health", http.StatusServiceUnavailable},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/api/auth/logout", http.StatusOK},
		{http.MethodGet, "/api/auth/unknown/start", http.StatusNotFound},
		{http.MethodGet, "/api/nothing-here", http.StatusNotFound},
		{http.MethodDelete, "/api/cities", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestRouter_SessionRoutesRequireLogin(t *testing.T) {
	router := testRouter(t, nil)
	id := uuid.NewString()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/profile"},
		{http.MethodPut, "/api/profile"},
		{http.MethodGet, "/api/users/" + id},
		{http.MethodPut, "/api/users/" + id + "/rating"},
		{http.MethodGet, "/api/matches"},
		{http.MethodGet, "/api/friends"},
		{http.MethodPost, "/api/friends/requests"},
		{http.MethodPost, "/api/friends/requests/" + id + "/accept"},
		{http.MethodPost, "/api/messages/" + id},
		{http.MethodGet, "/api/groups"},
		{http.MethodPost, "/api/groups/" + id + "/events"},
		{http.MethodDelete, "/api/comments/" + id},
		{http.MethodPost, "/api/events/" + id + "/join"},
		{http.MethodGet, "/api/admin/users"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(p.method, p.path, nil))
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestRouter_AdminRoutesRejectMembers(t *testing.T) {
	router := testRouter(t, testutil.Member())
	id := uuid.NewString()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/users"},
		{http.MethodGet, "/api/admin/interests"},
		{http.MethodPost, "/api/admin/users/" + id + "/restrict"},
		{http.MethodDelete, "/api/admin/users/" + id},
		{http.MethodDelete, "/api/admin/ratings/" + id + "/" + uuid.NewString()},
		{http.MethodPost, "/api/admin/cities"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(p.method, p.path, nil))
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rr.Code)
			}
		})
	}
}

func TestRouter_LoginIsRateLimited(t *testing.T) {
	router := testRouter(t, nil)

	for _, path := range []string{"/api/auth/login", "/api/auth/register"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("%s: expected 429, got %d", path, rr.Code)
		}
		if rr.Header().Get("Retry-After") == "" {
			t.Fatalf("%s: expected Retry-After header", path)
		}
	}
}
