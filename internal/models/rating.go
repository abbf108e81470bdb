package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

type Rating struct {
	RaterID   uuid.UUID `json:"rater_id"`
	RateeID   uuid.UUID `json:"ratee_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Review struct {
	RaterID       uuid.UUID `json:"rater_id"`
	RaterUsername string    `json:"rater_username"`
	Score         int       `json:"score"`
	Comment       string    `json:"comment"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RatingSummary carries an average that may not exist yet.
type RatingSummary struct {
	Average *float64 `json:"average"`
	Count   int      `json:"count"`
	Label   string   `json:"label"`
}

const NoRatingsLabel = "No ratings yet"

// AdminRating is a rating listed in the moderation console.
type AdminRating struct {
	Rating
	RaterUsername string `json:"rater_username"`
	RateeUsername string `json:"ratee_username"`
}
