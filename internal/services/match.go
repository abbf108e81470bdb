package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ryokrieger/CityConnect/internal/metrics"
	"github.com/ryokrieger/CityConnect/internal/models"
)

var (
	ErrNoInterests  = errors.New("add at least one interest to find matches")
	ErrInvalidScope = models.ErrInvalidScope
)

// candidateFilter selects users in the requester's scope who share at least
// one interest and are not already friends. $1 requester, $2 scope, $3
// location value, $4 requester interest ids.
const candidateFilter = `
	FROM users u
	JOIN user_interests ui ON ui.user_id = u.id AND ui.interest_id = ANY($4)
	LEFT JOIN cities c ON c.code = u.city_code
	LEFT JOIN neighborhoods n ON n.postal_code = u.postal_code
	WHERE u.id <> $1
	  AND CASE $2::text WHEN 'city' THEN u.city_code WHEN 'neighborhood' THEN u.postal_code END = $3
	  AND NOT EXISTS (
		SELECT 1 FROM friendships f
		WHERE (f.user1_id = $1 AND f.user2_id = u.id) OR (f.user1_id = u.id AND f.user2_id = $1)
	  )`

type MatchService struct {
	db DB
}

func NewMatchService(db DB) *MatchService {
	return &MatchService{db: db}
}

// FindMatches ranks users near the requester by how many interests they
// share, most first, then by username.
func (s *MatchService) FindMatches(ctx context.Context, userID uuid.UUID, scope models.MatchScope, page int) (*models.Page[models.MatchCandidate], error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	if _, err := models.ParseMatchScope(string(scope)); err != nil {
		return nil, err
	}
	page = models.NormalizePage(page)
	start := time.Now()

	var cityCode, postalCode *string
	err := s.db.QueryRow(ctx,
		`SELECT city_code, postal_code FROM users WHERE id = $1`,
		userID,
	).Scan(&cityCode, &postalCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading requester location: %w", err)
	}

	interestIDs, err := userInterestIDs(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if len(interestIDs) == 0 {
		return nil, ErrNoInterests
	}

	location := cityCode
	if scope == models.ScopeNeighborhood {
		location = postalCode
	}
	if location == nil {
		empty := models.NewPage[models.MatchCandidate](nil, page, 0)
		return &empty, nil
	}

	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT u.id)`+candidateFilter,
		userID, string(scope), *location, interestIDs,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting matches: %w", err)
	}

	candidates, err := s.rankPage(ctx, userID, scope, *location, interestIDs, page)
	if err != nil {
		return nil, err
	}

	if len(candidates) > 0 {
		ids := make([]uuid.UUID, len(candidates))
		for i, c := range candidates {
			ids[i] = c.UserID
		}
		shared, err := sharedInterestNames(ctx, s.db, ids, interestIDs)
		if err != nil {
			return nil, err
		}
		statuses, err := requestStatuses(ctx, s.db, userID, ids)
		if err != nil {
			return nil, err
		}
		for i := range candidates {
			candidates[i].SharedInterests = shared[candidates[i].UserID]
			if candidates[i].SharedInterests == nil {
				candidates[i].SharedInterests = []string{}
			}
			candidates[i].RequestStatus = statuses[candidates[i].UserID]
		}
	}

	metrics.RecordMatchQuery(string(scope), total, time.Since(start))
	result := models.NewPage(candidates, page, total)
	return &result, nil
}

func (s *MatchService) rankPage(ctx context.Context, userID uuid.UUID, scope models.MatchScope, location string, interestIDs []uuid.UUID, page int) ([]models.MatchCandidate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, u.email, c.name, n.area_name, COUNT(*) AS shared_count`+candidateFilter+`
		 GROUP BY u.id, u.username, u.email, c.name, n.area_name
		 ORDER BY shared_count DESC, u.username ASC
		 LIMIT $5 OFFSET $6`,
		userID, string(scope), location, interestIDs, models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("ranking matches: %w", err)
	}
	defer rows.Close()

	var candidates []models.MatchCandidate
	for rows.Next() {
		var c models.MatchCandidate
		if err := rows.Scan(&c.UserID, &c.Username, &c.Email, &c.CityName, &c.AreaName, &c.SharedCount); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		c.RequestStatus = models.RelationNone
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return candidates, nil
}

func userInterestIDs(ctx context.Context, q DBConn, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT interest_id FROM user_interests WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading interest ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning interest id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// sharedInterestNames returns, per user, the names of their interests that
// are also in interestIDs, sorted by name.
func sharedInterestNames(ctx context.Context, q DBConn, userIDs, interestIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	rows, err := q.Query(ctx,
		`SELECT ui.user_id, i.name
		 FROM user_interests ui
		 JOIN interests i ON i.id = ui.interest_id
		 WHERE ui.user_id = ANY($1) AND ui.interest_id = ANY($2)
		 ORDER BY i.name`,
		userIDs, interestIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("loading shared interests: %w", err)
	}
	defer rows.Close()

	shared := make(map[uuid.UUID][]string, len(userIDs))
	for rows.Next() {
		var userID uuid.UUID
		var name string
		if err := rows.Scan(&userID, &name); err != nil {
			return nil, fmt.Errorf("scanning shared interest: %w", err)
		}
		shared[userID] = append(shared[userID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shared interests: %w", err)
	}
	return shared, nil
}
