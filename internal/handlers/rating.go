package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

type RatingHandler struct {
	ratingService services.RatingServiceInterface
}

func NewRatingHandler(ratingService services.RatingServiceInterface) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

type SubmitRatingRequest struct {
	Score   int    `json:"score" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

type RatingResponse struct {
	Rating  *models.Rating `json:"rating,omitempty"`
	Message string         `json:"message,omitempty"`
}

type ReviewsResponse struct {
	Summary models.RatingSummary `json:"summary"`
	Reviews []models.Review      `json:"reviews"`
}

func (h *RatingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	rateeID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req SubmitRatingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rating, err := h.ratingService.Submit(r.Context(), user.ID, rateeID, req.Score, req.Comment)
	switch {
	case errors.Is(err, services.ErrCannotRateSelf):
		writeError(w, http.StatusBadRequest, "You cannot rate yourself")
	case errors.Is(err, services.ErrInvalidRatingScore):
		writeError(w, http.StatusBadRequest, "Rating must be between 1 and 5")
	case errors.Is(err, services.ErrRatingCommentTooLong):
		writeError(w, http.StatusBadRequest, "Comment is too long")
	case errors.Is(err, services.ErrNotFriends):
		writeError(w, http.StatusForbidden, "You can only rate friends")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case err != nil:
		log.Printf("Error submitting rating: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, RatingResponse{Rating: rating})
	}
}

func (h *RatingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	rateeID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.ratingService.Delete(r.Context(), user.ID, rateeID); err != nil {
		log.Printf("Error deleting rating: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, RatingResponse{Message: "Rating removed"})
}

func (h *RatingHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}

	rateeID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	summary, err := h.ratingService.AverageRating(r.Context(), rateeID)
	if err != nil {
		log.Printf("Error getting rating summary: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	reviews, err := h.ratingService.ListReviews(r.Context(), rateeID)
	if err != nil {
		log.Printf("Error listing reviews: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ReviewsResponse{Summary: summary, Reviews: reviews})
}
