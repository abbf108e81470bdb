package models

import (
	"time"

	"github.com/google/uuid"
)

type Group struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GroupSuggestion is a group that shares interests with the viewer.
type GroupSuggestion struct {
	Group
	SharedInterests int  `json:"shared_interests"`
	MemberCount     int  `json:"member_count"`
	IsMember        bool `json:"is_member"`
}

type CreateGroupParams struct {
	Name        string
	Description string
	InterestIDs []uuid.UUID
}

type Post struct {
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"group_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Comments  []Comment `json:"comments"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type GroupDetail struct {
	Group     Group          `json:"group"`
	Interests []Interest     `json:"interests"`
	Members   int            `json:"member_count"`
	Posts     []Post         `json:"posts"`
	Events    []EventSummary `json:"events"`
}

// AdminPost is a post listed in the moderation console.
type AdminPost struct {
	Post
	GroupName string `json:"group_name"`
}
