package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

const (
	eventDateLayout = "2006-01-02"
	eventTimeLayout = "15:04"
)

type EventHandler struct {
	eventService services.EventServiceInterface
}

func NewEventHandler(eventService services.EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type CreateEventRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description" validate:"max=2000"`
	Date        string  `json:"date" validate:"required"`
	Time        string  `json:"time" validate:"required"`
	CityCode    *string `json:"city_code" validate:"omitempty,max=20"`
	PostalCode  *string `json:"postal_code" validate:"omitempty,max=20"`
}

// startsAt combines the date and time fields, interpreted as UTC.
func (req CreateEventRequest) startsAt() (time.Time, error) {
	return time.Parse(eventDateLayout+" "+eventTimeLayout,
		strings.TrimSpace(req.Date)+" "+strings.TrimSpace(req.Time))
}

func writeEventError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "Event not found")
	case errors.Is(err, services.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "Event name and start time are required")
	case errors.Is(err, services.ErrUnknownLocation):
		writeError(w, http.StatusBadRequest, "Unknown city or neighborhood")
	default:
		writeGroupError(w, err, action)
	}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	var req CreateEventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	startsAt, err := req.startsAt()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Date must be YYYY-MM-DD and time HH:MM")
		return
	}

	event, err := h.eventService.Create(r.Context(), user.ID, models.CreateEventParams{
		GroupID:     groupID,
		Name:        req.Name,
		Description: req.Description,
		StartsAt:    startsAt,
		CityCode:    trimmedOrNil(req.CityCode),
		PostalCode:  trimmedOrNil(req.PostalCode),
	})
	if err != nil {
		writeEventError(w, err, "creating event")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	eventID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}

	if err := h.eventService.Delete(r.Context(), user.ID, eventID); err != nil {
		writeEventError(w, err, "deleting event")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Event deleted"})
}

func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	eventID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}

	if err := h.eventService.Join(r.Context(), user.ID, eventID); err != nil {
		writeEventError(w, err, "joining event")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Joined event"})
}

func (h *EventHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	eventID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}

	if err := h.eventService.Leave(r.Context(), user.ID, eventID); err != nil {
		writeEventError(w, err, "leaving event")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Left event"})
}
