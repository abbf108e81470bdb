package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

type FriendHandler struct {
	friendService services.FriendServiceInterface
	matchService  services.MatchServiceInterface
}

func NewFriendHandler(friendService services.FriendServiceInterface, matchService services.MatchServiceInterface) *FriendHandler {
	return &FriendHandler{
		friendService: friendService,
		matchService:  matchService,
	}
}

type SendRequestRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type SendRequestResponse struct {
	Created bool   `json:"created"`
	Message string `json:"message"`
}

type FriendRequestResponse struct {
	Request *models.FriendRequest `json:"request,omitempty"`
	Message string                `json:"message,omitempty"`
}

func (h *FriendHandler) Matches(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	// Missing or unknown scopes fall back to city.
	scope, err := models.ParseMatchScope(r.URL.Query().Get("scope"))
	if err != nil {
		scope = models.ScopeCity
	}

	page, err := h.matchService.FindMatches(r.Context(), user.ID, scope, parsePage(r))
	if errors.Is(err, services.ErrNoInterests) {
		writeError(w, http.StatusUnprocessableEntity, "Add at least one interest to find matches")
		return
	}
	if err != nil {
		log.Printf("Error finding matches: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req SendRequestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	receiverID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	created, err := h.friendService.SendRequest(r.Context(), user.ID, receiverID)
	if errors.Is(err, services.ErrCannotFriendSelf) {
		writeError(w, http.StatusBadRequest, "Cannot send a friend request to yourself")
		return
	}
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("Error sending friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, SendRequestResponse{Created: false, Message: "Already friends or request pending"})
		return
	}
	writeJSON(w, http.StatusCreated, SendRequestResponse{Created: true, Message: "Friend request sent"})
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	receiverID, err := parsePathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.friendService.CancelRequest(r.Context(), user.ID, receiverID); err != nil {
		log.Printf("Error cancelling friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestResponse{Message: "Friend request cancelled"})
}

func (h *FriendHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	page, err := h.friendService.ListIncoming(r.Context(), user.ID, parsePage(r))
	if err != nil {
		log.Printf("Error listing friend requests: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	requestID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	request, err := h.friendService.AcceptRequest(r.Context(), user.ID, requestID)
	if err != nil {
		h.writeRespondError(w, err, "accepting")
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestResponse{Request: request, Message: "Friend request accepted"})
}

func (h *FriendHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	requestID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	if err := h.friendService.DeclineRequest(r.Context(), user.ID, requestID); err != nil {
		h.writeRespondError(w, err, "declining")
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestResponse{Message: "Friend request declined"})
}

func (h *FriendHandler) writeRespondError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrFriendRequestNotFound):
		writeError(w, http.StatusNotFound, "Friend request not found")
	case errors.Is(err, services.ErrNotRequestReceiver):
		writeError(w, http.StatusForbidden, "Only the receiver can respond to this request")
	case errors.Is(err, services.ErrRequestNotPending):
		writeError(w, http.StatusConflict, "Friend request is no longer pending")
	default:
		log.Printf("Error %s friend request: %v", action, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	page, err := h.friendService.ListFriends(r.Context(), user.ID, parsePage(r))
	if err != nil {
		log.Printf("Error listing friends: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *FriendHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	otherID, err := parsePathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	err = h.friendService.Unfriend(r.Context(), user.ID, otherID)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("Error removing friend: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestResponse{Message: "Friend removed"})
}
