package models

import (
	"errors"

	"github.com/google/uuid"
)

const (
	PageSize = 10
	// MaxPage bounds page numbers so offsets never overflow.
	MaxPage = 100000
)

type MatchScope string

const (
	ScopeCity         MatchScope = "city"
	ScopeNeighborhood MatchScope = "neighborhood"
)

var ErrInvalidScope = errors.New("invalid match scope")

func ParseMatchScope(value string) (MatchScope, error) {
	switch MatchScope(value) {
	case ScopeCity, ScopeNeighborhood:
		return MatchScope(value), nil
	}
	return "", ErrInvalidScope
}

type MatchCandidate struct {
	UserID          uuid.UUID      `json:"user_id"`
	Username        string         `json:"username"`
	Email           string         `json:"email"`
	CityName        *string        `json:"city_name,omitempty"`
	AreaName        *string        `json:"area_name,omitempty"`
	SharedCount     int            `json:"shared_count"`
	SharedInterests []string       `json:"shared_interests"`
	RequestStatus   RelationStatus `json:"request_status"`
}

type PageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type Page[T any] struct {
	Items []T      `json:"items"`
	Meta  PageMeta `json:"meta"`
}

// NormalizePage clamps a requested page number into [1, MaxPage].
func NormalizePage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > MaxPage:
		return MaxPage
	}
	return page
}

// PageOffset returns the row offset of page for the fixed page size.
func PageOffset(page int) int {
	return (NormalizePage(page) - 1) * PageSize
}

func NewPageMeta(page, total int) PageMeta {
	return PageMeta{
		Page:       NormalizePage(page),
		PageSize:   PageSize,
		Total:      total,
		TotalPages: (total + PageSize - 1) / PageSize,
	}
}

func NewPage[T any](items []T, page, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: NewPageMeta(page, total)}
}
