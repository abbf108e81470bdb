package models

import (
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	Gender       Gender    `json:"gender"`
	CityCode     *string   `json:"city_code,omitempty"`
	PostalCode   *string   `json:"postal_code,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	IsRestricted bool      `json:"is_restricted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Gender       Gender
	CityCode     *string
	PostalCode   *string
}

type UpdateProfileParams struct {
	Gender      Gender
	CityCode    *string
	PostalCode  *string
	InterestIDs []uuid.UUID
}

// Profile is the signed-in user's own view of their account.
type Profile struct {
	User      *User      `json:"user"`
	CityName  *string    `json:"city_name,omitempty"`
	AreaName  *string    `json:"area_name,omitempty"`
	Interests []Interest `json:"interests"`
}

// PublicProfile is what one user sees when viewing another.
type PublicProfile struct {
	ID             uuid.UUID      `json:"id"`
	Username       string         `json:"username"`
	Gender         Gender         `json:"gender"`
	CityName       *string        `json:"city_name,omitempty"`
	AreaName       *string        `json:"area_name,omitempty"`
	Interests      []Interest     `json:"interests"`
	Rating         RatingSummary  `json:"rating"`
	Reviews        []Review       `json:"reviews"`
	RelationStatus RelationStatus `json:"relation_status"`
	IsFriend       bool           `json:"is_friend"`
}
