package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

type FriendRequest struct {
	ID         uuid.UUID           `json:"id"`
	SenderID   uuid.UUID           `json:"sender_id"`
	ReceiverID uuid.UUID           `json:"receiver_id"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// IncomingRequest is a pending request shown to its receiver.
type IncomingRequest struct {
	ID             uuid.UUID `json:"id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	SenderEmail    string    `json:"sender_email"`
	CreatedAt      time.Time `json:"created_at"`
}

type Friend struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	CityName *string   `json:"city_name,omitempty"`
	AreaName *string   `json:"area_name,omitempty"`
	Since    time.Time `json:"since"`
}

// RelationStatus describes a friend request between two users from the
// viewer's side.
type RelationStatus string

const (
	RelationNone            RelationStatus = "none"
	RelationPendingOutgoing RelationStatus = "pending_outgoing"
	RelationPendingIncoming RelationStatus = "pending_incoming"
	RelationAccepted        RelationStatus = "accepted"
	RelationDeclined        RelationStatus = "declined"
)

// relationRank orders statuses for pairs that have requests in both
// directions; the higher rank is reported.
var relationRank = map[RelationStatus]int{
	RelationNone:            0,
	RelationDeclined:        1,
	RelationPendingOutgoing: 2,
	RelationPendingIncoming: 3,
	RelationAccepted:        4,
}

// ClassifyRequest maps a request row to the viewer's relation status.
func ClassifyRequest(viewer, sender uuid.UUID, status FriendRequestStatus) RelationStatus {
	switch status {
	case FriendRequestAccepted:
		return RelationAccepted
	case FriendRequestDeclined:
		return RelationDeclined
	case FriendRequestPending:
		if sender == viewer {
			return RelationPendingOutgoing
		}
		return RelationPendingIncoming
	}
	return RelationNone
}

// Stronger returns whichever of a and b should be displayed.
func (s RelationStatus) Stronger(other RelationStatus) RelationStatus {
	if relationRank[other] > relationRank[s] {
		return other
	}
	return s
}
