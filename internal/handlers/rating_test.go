package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
	"github.com/ryokrieger/CityConnect/internal/testutil"
)

func ratingRequest(t *testing.T, method, body string, ratee uuid.UUID) *http.Request {
	t.Helper()
	req := authedRequest(method, "/api/users/"+ratee.String()+"/rating", body, testutil.Member())
	req.SetPathValue("id", ratee.String())
	return req
}

func TestRatingHandler_Submit(t *testing.T) {
	ratee := uuid.New()
	var gotScore int
	var gotComment string
	ratings := &mockRatingService{
		SubmitFunc: func(ctx context.Context, raterID, rateeID uuid.UUID, score int, comment string) (*models.Rating, error) {
			gotScore, gotComment = score, comment
			return &models.Rating{RaterID: raterID, RateeID: rateeID, Score: score, Comment: comment}, nil
		},
	}
	handler := NewRatingHandler(ratings)

	rr := httptest.NewRecorder()
	handler.Submit(rr, ratingRequest(t, http.MethodPut, `{"score":5,"comment":"Great host"}`, ratee))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotScore != 5 || gotComment != "Great host" {
		t.Fatalf("unexpected submit args %d %q", gotScore, gotComment)
	}
	if resp := testutil.DecodeJSON[RatingResponse](t, rr); resp.Rating == nil || resp.Rating.RateeID != ratee {
		t.Fatalf("unexpected rating %+v", resp.Rating)
	}
}

func TestRatingHandler_Submit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantError  string
	}{
		{"zero score", `{"score":0}`, nil, http.StatusBadRequest, "score is required"},
		{"score too high", `{"score":6}`, nil, http.StatusBadRequest, "score must be at most 5"},
		{"comment too long", `{"score":3,"comment":"` + strings.Repeat("a", 1001) + `"}`, nil, http.StatusBadRequest, "comment must be at most 1000 characters"},
		{"self", `{"score":3}`, services.ErrCannotRateSelf, http.StatusBadRequest, "You cannot rate yourself"},
		{"not friends", `{"score":3}`, services.ErrNotFriends, http.StatusForbidden, "You can only rate friends"},
		{"unknown ratee", `{"score":3}`, services.ErrUserNotFound, http.StatusNotFound, "User not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratings := &mockRatingService{
				SubmitFunc: func(ctx context.Context, raterID, rateeID uuid.UUID, score int, comment string) (*models.Rating, error) {
					return nil, tt.serviceErr
				},
			}
			handler := NewRatingHandler(ratings)

			rr := httptest.NewRecorder()
			handler.Submit(rr, ratingRequest(t, http.MethodPut, tt.body, uuid.New()))

			assertErrorResponse(t, rr, tt.wantStatus, tt.wantError)
		})
	}
}

func TestRatingHandler_Submit_InvalidPath(t *testing.T) {
	handler := NewRatingHandler(&mockRatingService{})

	req := authedRequest(http.MethodPut, "/", `{"score":3}`, testutil.Member())
	req.SetPathValue("id", "not-a-uuid")
	rr := httptest.NewRecorder()
	handler.Submit(rr, req)

	assertErrorResponse(t, rr, http.StatusBadRequest, "Invalid user ID")
}

func TestRatingHandler_Delete(t *testing.T) {
	ratee := uuid.New()
	deleted := false
	ratings := &mockRatingService{
		DeleteFunc: func(ctx context.Context, raterID, rateeID uuid.UUID) error {
			deleted = rateeID == ratee
			return nil
		},
	}
	handler := NewRatingHandler(ratings)

	rr := httptest.NewRecorder()
	handler.Delete(rr, ratingRequest(t, http.MethodDelete, "", ratee))

	if rr.Code != http.StatusOK || !deleted {
		t.Fatalf("expected rating deleted, status %d", rr.Code)
	}
}

func TestRatingHandler_ListReviews(t *testing.T) {
	avg := 4.5
	ratings := &mockRatingService{
		AverageFunc: func(ctx context.Context, rateeID uuid.UUID) (models.RatingSummary, error) {
			return models.RatingSummary{Average: &avg, Count: 2, Label: "4.5"}, nil
		},
		ListReviewsFunc: func(ctx context.Context, rateeID uuid.UUID) ([]models.Review, error) {
			return []models.Review{{RaterUsername: "anna", Score: 5}, {RaterUsername: "carl", Score: 4}}, nil
		},
	}
	handler := NewRatingHandler(ratings)

	rr := httptest.NewRecorder()
	handler.ListReviews(rr, ratingRequest(t, http.MethodGet, "", uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := testutil.DecodeJSON[ReviewsResponse](t, rr)
	if resp.Summary.Label != "4.5" || resp.Summary.Count != 2 {
		t.Fatalf("unexpected summary %+v", resp.Summary)
	}
	if len(resp.Reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(resp.Reviews))
	}
}
