package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ryokrieger/CityConnect/internal/models"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("event name and start time are required")
)

var authoredEvent = authoredRow{
	label:     "event",
	deleteSQL: `DELETE FROM events WHERE id = $1 AND creator_id = $2`,
	existsSQL: `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`,
	notFound:  ErrEventNotFound,
}

type EventService struct {
	db DB
}

func NewEventService(db DB) *EventService {
	return &EventService{db: db}
}

// Create schedules an event in a group. Only members may create events and
// the creator is not automatically a participant.
func (s *EventService) Create(ctx context.Context, creatorID uuid.UUID, params models.CreateEventParams) (*models.Event, error) {
	if err := requireActor(creatorID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" || params.StartsAt.IsZero() {
		return nil, ErrInvalidEvent
	}

	var isMember bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		params.GroupID, creatorID,
	).Scan(&isMember); err != nil {
		return nil, fmt.Errorf("checking membership: %w", err)
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}

	event := &models.Event{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO events (group_id, creator_id, name, description, starts_at, city_code, postal_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, group_id, creator_id, name, description, starts_at, city_code, postal_code, created_at`,
		params.GroupID, creatorID, name, strings.TrimSpace(params.Description), params.StartsAt,
		params.CityCode, params.PostalCode,
	).Scan(&event.ID, &event.GroupID, &event.CreatorID, &event.Name, &event.Description, &event.StartsAt,
		&event.CityCode, &event.PostalCode, &event.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrUnknownLocation
		}
		return nil, fmt.Errorf("creating event: %w", err)
	}
	return event, nil
}

func (s *EventService) Delete(ctx context.Context, userID, eventID uuid.UUID) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	return deleteAuthored(ctx, s.db, authoredEvent, eventID, userID)
}

// Join registers the user for an event in a group they belong to. Joining
// twice is not an error.
func (s *EventService) Join(ctx context.Context, userID, eventID uuid.UUID) error {
	if err := requireActor(userID); err != nil {
		return err
	}

	var isMember bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM group_members gm WHERE gm.group_id = e.group_id AND gm.user_id = $2)
		 FROM events e WHERE e.id = $1`,
		eventID, userID,
	).Scan(&isMember)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("loading event: %w", err)
	}
	if !isMember {
		return ErrNotGroupMember
	}

	if _, err := s.db.Exec(ctx,
		`INSERT INTO event_participants (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		eventID, userID,
	); err != nil {
		if isForeignKeyViolation(err) {
			return ErrEventNotFound
		}
		return fmt.Errorf("joining event: %w", err)
	}
	return nil
}

func (s *EventService) Leave(ctx context.Context, userID, eventID uuid.UUID) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx,
		`DELETE FROM event_participants WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	); err != nil {
		return fmt.Errorf("leaving event: %w", err)
	}
	return nil
}

func listGroupEvents(ctx context.Context, q DBConn, groupID, viewerID uuid.UUID) ([]models.EventSummary, error) {
	rows, err := q.Query(ctx,
		`SELECT e.id, e.group_id, e.creator_id, e.name, e.description, e.starts_at,
		        e.city_code, e.postal_code, e.created_at, u.username,
		        (SELECT COUNT(*) FROM event_participants ep WHERE ep.event_id = e.id),
		        EXISTS(SELECT 1 FROM event_participants ep WHERE ep.event_id = e.id AND ep.user_id = $2)
		 FROM events e
		 JOIN users u ON u.id = e.creator_id
		 WHERE e.group_id = $1
		 ORDER BY e.starts_at ASC`,
		groupID, viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []models.EventSummary{}
	for rows.Next() {
		var e models.EventSummary
		if err := rows.Scan(&e.ID, &e.GroupID, &e.CreatorID, &e.Name, &e.Description, &e.StartsAt,
			&e.CityCode, &e.PostalCode, &e.CreatedAt, &e.CreatorUsername, &e.ParticipantCount, &e.IsParticipating); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}
