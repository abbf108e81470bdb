package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

type ProfileHandler struct {
	userService   services.UserServiceInterface
	ratingService services.RatingServiceInterface
}

func NewProfileHandler(userService services.UserServiceInterface, ratingService services.RatingServiceInterface) *ProfileHandler {
	return &ProfileHandler{userService: userService, ratingService: ratingService}
}

type UpdateProfileRequest struct {
	Gender      string   `json:"gender" validate:"required,oneof=male female other"`
	CityCode    *string  `json:"city_code" validate:"omitempty,max=20"`
	PostalCode  *string  `json:"postal_code" validate:"omitempty,max=20"`
	InterestIDs []string `json:"interest_ids" validate:"dive,uuid"`
}

type PublicProfileResponse struct {
	Profile *models.PublicProfile `json:"profile"`
	// MyRating is the viewer's own rating of this user, if any.
	MyRating *models.Rating `json:"my_rating,omitempty"`
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), user.ID)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("Error getting profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	interestIDs, err := parseUUIDs(req.InterestIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interest ID")
		return
	}

	profile, err := h.userService.UpdateProfile(r.Context(), user.ID, models.UpdateProfileParams{
		Gender:      models.Gender(req.Gender),
		CityCode:    trimmedOrNil(req.CityCode),
		PostalCode:  trimmedOrNil(req.PostalCode),
		InterestIDs: interestIDs,
	})
	switch {
	case errors.Is(err, services.ErrInvalidGender):
		writeError(w, http.StatusBadRequest, "Gender must be male, female or other")
	case errors.Is(err, services.ErrUnknownLocation):
		writeError(w, http.StatusBadRequest, "Unknown city or neighborhood")
	case errors.Is(err, services.ErrUnknownInterest):
		writeError(w, http.StatusBadRequest, "Unknown interest")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case err != nil:
		log.Printf("Error updating profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, profile)
	}
}

func (h *ProfileHandler) GetPublicProfile(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	targetID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	profile, err := h.userService.GetPublicProfile(r.Context(), user.ID, targetID)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("Error getting public profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := PublicProfileResponse{Profile: profile}
	if targetID != user.ID {
		rating, err := h.ratingService.Get(r.Context(), user.ID, targetID)
		if err != nil && !errors.Is(err, services.ErrRatingNotFound) {
			log.Printf("Error getting own rating: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		resp.MyRating = rating
	}

	writeJSON(w, http.StatusOK, resp)
}

type ReferenceHandler struct {
	locationService services.LocationServiceInterface
	interestService services.InterestServiceInterface
}

func NewReferenceHandler(locationService services.LocationServiceInterface, interestService services.InterestServiceInterface) *ReferenceHandler {
	return &ReferenceHandler{locationService: locationService, interestService: interestService}
}

type CitiesResponse struct {
	Cities []models.City `json:"cities"`
}

type NeighborhoodsResponse struct {
	Neighborhoods []models.Neighborhood `json:"neighborhoods"`
}

type InterestsResponse struct {
	Interests []models.Interest `json:"interests"`
}

func (h *ReferenceHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.locationService.ListCities(r.Context())
	if err != nil {
		log.Printf("Error listing cities: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, CitiesResponse{Cities: cities})
}

func (h *ReferenceHandler) ListNeighborhoods(w http.ResponseWriter, r *http.Request) {
	neighborhoods, err := h.locationService.ListNeighborhoods(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		log.Printf("Error listing neighborhoods: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, NeighborhoodsResponse{Neighborhoods: neighborhoods})
}

func (h *ReferenceHandler) ListInterests(w http.ResponseWriter, r *http.Request) {
	interests, err := h.interestService.List(r.Context())
	if err != nil {
		log.Printf("Error listing interests: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, InterestsResponse{Interests: interests})
}
