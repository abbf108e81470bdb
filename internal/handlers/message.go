package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

type MessageHandler struct {
	messageService services.MessageServiceInterface
}

func NewMessageHandler(messageService services.MessageServiceInterface) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type ConversationResponse struct {
	Messages []models.Message `json:"messages"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	friendID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.messageService.Send(r.Context(), user.ID, friendID, req.Content)
	if errors.Is(err, services.ErrInvalidMessage) {
		writeError(w, http.StatusBadRequest, "Message must be between 1 and 2000 characters")
		return
	}
	if errors.Is(err, services.ErrNotFriends) {
		writeError(w, http.StatusForbidden, "You can only message friends")
		return
	}
	if err != nil {
		log.Printf("Error sending message: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	friendID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	messages, err := h.messageService.Conversation(r.Context(), user.ID, friendID)
	if errors.Is(err, services.ErrNotFriends) {
		writeError(w, http.StatusForbidden, "You can only message friends")
		return
	}
	if err != nil {
		log.Printf("Error loading conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ConversationResponse{Messages: messages})
}
