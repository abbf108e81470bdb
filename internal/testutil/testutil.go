// Package testutil holds fixtures and assertions shared by package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ryokrieger/CityConnect/internal/models"
)

// Member returns a signed-up, unrestricted, non-admin user in Dhaka.
func Member(opts ...func(*models.User)) *models.User {
	city := "DHK"
	user := &models.User{
		ID:        uuid.New(),
		Username:  RandomUsername(),
		Email:     RandomEmail(),
		Gender:    models.GenderOther,
		CityCode:  &city,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(user)
	}
	return user
}

// Admin returns a Member with the admin flag set.
func Admin(opts ...func(*models.User)) *models.User {
	return Member(append([]func(*models.User){func(u *models.User) { u.IsAdmin = true }}, opts...)...)
}

func Restricted(u *models.User) {
	u.IsRestricted = true
}

// JSONRequest builds a request whose body is v encoded as JSON.
func JSONRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

// DecodeJSON unmarshals a recorded response body into T.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse JSON response %q: %v", rr.Body.String(), err)
	}
	return out
}

func RandomEmail() string {
	return "user-" + uuid.NewString()[:8] + "@example.com"
}

// RandomUsername returns a username that passes registration validation.
func RandomUsername() string {
	return "user_" + uuid.NewString()[:8]
}
