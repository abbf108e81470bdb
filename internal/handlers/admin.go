package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

type AdminHandler struct {
	adminService    services.AdminServiceInterface
	interestService services.InterestServiceInterface
	locationService services.LocationServiceInterface
}

func NewAdminHandler(adminService services.AdminServiceInterface, interestService services.InterestServiceInterface, locationService services.LocationServiceInterface) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		interestService: interestService,
		locationService: locationService,
	}
}

type InterestRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Category string `json:"category" validate:"max=100"`
}

type CityRequest struct {
	Code string `json:"code" validate:"required,max=20"`
	Name string `json:"name" validate:"required,max=100"`
}

type NeighborhoodRequest struct {
	PostalCode string  `json:"postal_code" validate:"required,max=20"`
	AreaName   string  `json:"area_name" validate:"required,max=100"`
	CityCode   *string `json:"city_code" validate:"omitempty,max=20"`
}

func writeAdminError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrAdminRequired):
		writeError(w, http.StatusForbidden, "Admin access required")
	case errors.Is(err, services.ErrCannotModifySelf):
		writeError(w, http.StatusBadRequest, "You cannot change your own account here")
	case errors.Is(err, services.ErrCannotDeleteAdmin):
		writeError(w, http.StatusBadRequest, "Admin accounts cannot be deleted")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrRatingNotFound):
		writeError(w, http.StatusNotFound, "Rating not found")
	case errors.Is(err, services.ErrInterestNotFound):
		writeError(w, http.StatusNotFound, "Interest not found")
	case errors.Is(err, services.ErrInterestExists):
		writeError(w, http.StatusConflict, "An interest with that name already exists")
	case errors.Is(err, services.ErrInvalidInterest):
		writeError(w, http.StatusBadRequest, "Interest name is required")
	case errors.Is(err, services.ErrCityExists):
		writeError(w, http.StatusConflict, "City already exists")
	case errors.Is(err, services.ErrNeighborhoodExists):
		writeError(w, http.StatusConflict, "Neighborhood already exists")
	case errors.Is(err, services.ErrInvalidLocationInput):
		writeError(w, http.StatusBadRequest, "Code and name are required")
	default:
		writeEventError(w, err, action)
	}
}

// adminList serves one of the paged moderation lists.
func adminList[T any](w http.ResponseWriter, r *http.Request, what string, list func(actorID uuid.UUID, page int) (*models.Page[T], error)) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	page, err := list(user.ID, parsePage(r))
	if err != nil {
		writeAdminError(w, err, "listing "+what)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	adminList(w, r, "users", func(actorID uuid.UUID, page int) (*models.Page[models.User], error) {
		return h.adminService.ListUsers(r.Context(), actorID, page)
	})
}

func (h *AdminHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	adminList(w, r, "groups", func(actorID uuid.UUID, page int) (*models.Page[models.GroupSuggestion], error) {
		return h.adminService.ListGroups(r.Context(), actorID, page)
	})
}

func (h *AdminHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	adminList(w, r, "posts", func(actorID uuid.UUID, page int) (*models.Page[models.AdminPost], error) {
		return h.adminService.ListPosts(r.Context(), actorID, page)
	})
}

func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	adminList(w, r, "events", func(actorID uuid.UUID, page int) (*models.Page[models.AdminEvent], error) {
		return h.adminService.ListEvents(r.Context(), actorID, page)
	})
}

func (h *AdminHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	adminList(w, r, "ratings", func(actorID uuid.UUID, page int) (*models.Page[models.AdminRating], error) {
		return h.adminService.ListRatings(r.Context(), actorID, page)
	})
}

// ListInterests is gated by the admin middleware only; interests are not
// private data.
func (h *AdminHandler) ListInterests(w http.ResponseWriter, r *http.Request) {
	adminList(w, r, "interests", func(_ uuid.UUID, page int) (*models.Page[models.Interest], error) {
		return h.interestService.ListPage(r.Context(), page)
	})
}

// userAction runs fn against the {id} user of the path.
func (h *AdminHandler) userAction(w http.ResponseWriter, r *http.Request, action, done string, fn func(actorID, targetID uuid.UUID) error) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	targetID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if err := fn(user.ID, targetID); err != nil {
		writeAdminError(w, err, action)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: done})
}

func (h *AdminHandler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, "granting admin", "User is now an admin", func(actorID, targetID uuid.UUID) error {
		return h.adminService.SetAdmin(r.Context(), actorID, targetID, true)
	})
}

func (h *AdminHandler) RevokeAdmin(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, "revoking admin", "Admin access revoked", func(actorID, targetID uuid.UUID) error {
		return h.adminService.SetAdmin(r.Context(), actorID, targetID, false)
	})
}

func (h *AdminHandler) Restrict(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, "restricting user", "User restricted", func(actorID, targetID uuid.UUID) error {
		return h.adminService.SetRestricted(r.Context(), actorID, targetID, true)
	})
}

func (h *AdminHandler) Unrestrict(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, "unrestricting user", "User unrestricted", func(actorID, targetID uuid.UUID) error {
		return h.adminService.SetRestricted(r.Context(), actorID, targetID, false)
	})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, "deleting user", "User deleted", func(actorID, targetID uuid.UUID) error {
		return h.adminService.DeleteUser(r.Context(), actorID, targetID)
	})
}

// deleteContent removes the {id} item with fn.
func (h *AdminHandler) deleteContent(w http.ResponseWriter, r *http.Request, what string, fn func(actorID, id uuid.UUID) error) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+what+" ID")
		return
	}
	if err := fn(user.ID, id); err != nil {
		writeAdminError(w, err, "deleting "+what)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Deleted"})
}

func (h *AdminHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	h.deleteContent(w, r, "group", func(actorID, id uuid.UUID) error {
		return h.adminService.DeleteGroup(r.Context(), actorID, id)
	})
}

func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	h.deleteContent(w, r, "post", func(actorID, id uuid.UUID) error {
		return h.adminService.DeletePost(r.Context(), actorID, id)
	})
}

func (h *AdminHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	h.deleteContent(w, r, "event", func(actorID, id uuid.UUID) error {
		return h.adminService.DeleteEvent(r.Context(), actorID, id)
	})
}

func (h *AdminHandler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	raterID, err := parsePathID(r, "raterID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rater ID")
		return
	}
	rateeID, err := parsePathID(r, "rateeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ratee ID")
		return
	}
	if err := h.adminService.DeleteRating(r.Context(), user.ID, raterID, rateeID); err != nil {
		writeAdminError(w, err, "deleting rating")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Deleted"})
}

func (h *AdminHandler) CreateInterest(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}
	var req InterestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	interest, err := h.interestService.Create(r.Context(), req.Name, req.Category)
	if err != nil {
		writeAdminError(w, err, "creating interest")
		return
	}
	writeJSON(w, http.StatusCreated, interest)
}

func (h *AdminHandler) UpdateInterest(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interest ID")
		return
	}
	var req InterestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	interest, err := h.interestService.Update(r.Context(), id, req.Name, req.Category)
	if err != nil {
		writeAdminError(w, err, "updating interest")
		return
	}
	writeJSON(w, http.StatusOK, interest)
}

func (h *AdminHandler) DeleteInterest(w http.ResponseWriter, r *http.Request) {
	h.deleteContent(w, r, "interest", func(_, id uuid.UUID) error {
		return h.interestService.Delete(r.Context(), id)
	})
}

func (h *AdminHandler) AddCity(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}
	var req CityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	city := models.City{Code: req.Code, Name: req.Name}
	if err := h.locationService.AddCity(r.Context(), city); err != nil {
		writeAdminError(w, err, "adding city")
		return
	}
	writeJSON(w, http.StatusCreated, city)
}

func (h *AdminHandler) AddNeighborhood(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}
	var req NeighborhoodRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	n := models.Neighborhood{PostalCode: req.PostalCode, AreaName: req.AreaName, CityCode: trimmedOrNil(req.CityCode)}
	if err := h.locationService.AddNeighborhood(r.Context(), n); err != nil {
		writeAdminError(w, err, "adding neighborhood")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}
