package models

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID `json:"id"`
	GroupID     uuid.UUID `json:"group_id"`
	CreatorID   uuid.UUID `json:"creator_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
	CityCode    *string   `json:"city_code,omitempty"`
	PostalCode  *string   `json:"postal_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type EventSummary struct {
	Event
	CreatorUsername  string `json:"creator_username"`
	ParticipantCount int    `json:"participant_count"`
	IsParticipating  bool   `json:"is_participating"`
}

type CreateEventParams struct {
	GroupID     uuid.UUID
	Name        string
	Description string
	StartsAt    time.Time
	CityCode    *string
	PostalCode  *string
}

// AdminEvent is an event listed in the moderation console.
type AdminEvent struct {
	Event
	GroupName       string `json:"group_name"`
	CreatorUsername string `json:"creator_username"`
}
