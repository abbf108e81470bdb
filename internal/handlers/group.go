package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

type GroupHandler struct {
	groupService services.GroupServiceInterface
}

func NewGroupHandler(groupService services.GroupServiceInterface) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=2000"`
	InterestIDs []string `json:"interest_ids" validate:"dive,uuid"`
}

type ContentRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// writeGroupError maps group service errors shared by every group endpoint.
func writeGroupError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "Group not found")
	case errors.Is(err, services.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "Post not found")
	case errors.Is(err, services.ErrCommentNotFound):
		writeError(w, http.StatusNotFound, "Comment not found")
	case errors.Is(err, services.ErrNotGroupMember):
		writeError(w, http.StatusForbidden, "You must join this group first")
	case errors.Is(err, services.ErrNotAuthor):
		writeError(w, http.StatusForbidden, "Only the author can delete this")
	case errors.Is(err, services.ErrInvalidGroup):
		writeError(w, http.StatusBadRequest, "Group name is required")
	case errors.Is(err, services.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "Content cannot be empty")
	case errors.Is(err, services.ErrUnknownInterest):
		writeError(w, http.StatusBadRequest, "Unknown interest")
	default:
		log.Printf("Error %s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *GroupHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	page, err := h.groupService.Suggestions(r.Context(), user.ID, parsePage(r))
	if err != nil {
		writeGroupError(w, err, "listing group suggestions")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CreateGroupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	interestIDs, err := parseUUIDs(req.InterestIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interest ID")
		return
	}

	group, err := h.groupService.Create(r.Context(), user.ID, models.CreateGroupParams{
		Name:        req.Name,
		Description: req.Description,
		InterestIDs: interestIDs,
	})
	if err != nil {
		writeGroupError(w, err, "creating group")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (h *GroupHandler) Detail(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	detail, err := h.groupService.Detail(r.Context(), user.ID, groupID)
	if err != nil {
		writeGroupError(w, err, "loading group")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	if err := h.groupService.Join(r.Context(), user.ID, groupID); err != nil {
		writeGroupError(w, err, "joining group")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Joined group"})
}

func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	if err := h.groupService.Leave(r.Context(), user.ID, groupID); err != nil {
		writeGroupError(w, err, "leaving group")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Left group"})
}

func (h *GroupHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	var req ContentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	post, err := h.groupService.CreatePost(r.Context(), user.ID, groupID, req.Content)
	if err != nil {
		writeGroupError(w, err, "creating post")
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *GroupHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	postID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	if err := h.groupService.DeletePost(r.Context(), user.ID, postID); err != nil {
		writeGroupError(w, err, "deleting post")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted"})
}

func (h *GroupHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	postID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	var req ContentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	comment, err := h.groupService.AddComment(r.Context(), user.ID, postID, req.Content)
	if err != nil {
		writeGroupError(w, err, "adding comment")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *GroupHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	commentID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid comment ID")
		return
	}

	if err := h.groupService.DeleteComment(r.Context(), user.ID, commentID); err != nil {
		writeGroupError(w, err, "deleting comment")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Comment deleted"})
}
