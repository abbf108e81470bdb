package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ryokrieger/CityConnect/internal/logging"
	"github.com/ryokrieger/CityConnect/internal/models"
)

var (
	ErrAdminRequired     = errors.New("admin access required")
	ErrCannotModifySelf  = errors.New("admins cannot change their own account here")
	ErrCannotDeleteAdmin = errors.New("admin accounts cannot be deleted")
)

// SessionRevoker signs a user out of every session.
type SessionRevoker interface {
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error
}

type AdminService struct {
	db       DB
	sessions SessionRevoker
}

func NewAdminService(db DB, sessions SessionRevoker) *AdminService {
	return &AdminService{db: db, sessions: sessions}
}

// requireAdmin re-reads the actor's flag so a revoked admin loses access
// on their next call.
func (s *AdminService) requireAdmin(ctx context.Context, actorID uuid.UUID) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	var isAdmin bool
	err := s.db.QueryRow(ctx, `SELECT is_admin FROM users WHERE id = $1`, actorID).Scan(&isAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUnauthenticated
	}
	if err != nil {
		return fmt.Errorf("checking admin flag: %w", err)
	}
	if !isAdmin {
		return ErrAdminRequired
	}
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.User], error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	total, err := countRows(ctx, s.db, `SELECT COUNT(*) FROM users`)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2`,
		models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	result := models.NewPage(users, page, total)
	return &result, nil
}

func (s *AdminService) SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, admin bool) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == targetID {
		return ErrCannotModifySelf
	}
	return s.updateFlag(ctx, `UPDATE users SET is_admin = $2, updated_at = NOW() WHERE id = $1`, targetID, admin)
}

// SetRestricted blocks or unblocks a user. Restricting also ends the user's
// sessions so the block takes effect immediately.
func (s *AdminService) SetRestricted(ctx context.Context, actorID, targetID uuid.UUID, restricted bool) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == targetID {
		return ErrCannotModifySelf
	}
	if err := s.updateFlag(ctx, `UPDATE users SET is_restricted = $2, updated_at = NOW() WHERE id = $1`, targetID, restricted); err != nil {
		return err
	}
	if restricted && s.sessions != nil {
		if err := s.sessions.DeleteUserSessions(ctx, targetID); err != nil {
			logging.Warn("Failed to revoke sessions of restricted user", map[string]interface{}{
				"user_id": targetID.String(),
				"error":   err.Error(),
			})
		}
	}
	return nil
}

func (s *AdminService) updateFlag(ctx context.Context, sql string, targetID uuid.UUID, value bool) error {
	tag, err := s.db.Exec(ctx, sql, targetID, value)
	if err != nil {
		return fmt.Errorf("updating user flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a non-admin user. Their content goes with them through
// foreign key cascades; groups they created stay without a creator.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, targetID uuid.UUID) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == targetID {
		return ErrCannotModifySelf
	}

	return runInTx(ctx, s.db, func(tx Tx) error {
		var isAdmin bool
		err := tx.QueryRow(ctx, `SELECT is_admin FROM users WHERE id = $1 FOR UPDATE`, targetID).Scan(&isAdmin)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("loading user: %w", err)
		}
		if isAdmin {
			return ErrCannotDeleteAdmin
		}

		// Sessions cascade with the user; a cached token then fails the user lookup.
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, targetID); err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		return nil
	})
}

func (s *AdminService) ListGroups(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.GroupSuggestion], error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	total, err := countRows(ctx, s.db, `SELECT COUNT(*) FROM groups`)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT g.id, g.name, g.description, g.created_by, g.created_at,
		        (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id)
		 FROM groups g
		 ORDER BY g.created_at DESC, g.id
		 LIMIT $1 OFFSET $2`,
		models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	var items []models.GroupSuggestion
	for rows.Next() {
		var g models.GroupSuggestion
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.CreatedAt, &g.MemberCount); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating groups: %w", err)
	}
	result := models.NewPage(items, page, total)
	return &result, nil
}

func (s *AdminService) ListPosts(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.AdminPost], error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	total, err := countRows(ctx, s.db, `SELECT COUNT(*) FROM group_posts`)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.group_id, p.user_id, u.username, p.content, p.created_at, g.name
		 FROM group_posts p
		 JOIN users u ON u.id = p.user_id
		 JOIN groups g ON g.id = p.group_id
		 ORDER BY p.created_at DESC
		 LIMIT $1 OFFSET $2`,
		models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	var items []models.AdminPost
	for rows.Next() {
		var p models.AdminPost
		if err := rows.Scan(&p.ID, &p.GroupID, &p.UserID, &p.Username, &p.Content, &p.CreatedAt, &p.GroupName); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}
	result := models.NewPage(items, page, total)
	return &result, nil
}

func (s *AdminService) ListEvents(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.AdminEvent], error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	total, err := countRows(ctx, s.db, `SELECT COUNT(*) FROM events`)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT e.id, e.group_id, e.creator_id, e.name, e.description, e.starts_at,
		        e.city_code, e.postal_code, e.created_at, g.name, u.username
		 FROM events e
		 JOIN groups g ON g.id = e.group_id
		 JOIN users u ON u.id = e.creator_id
		 ORDER BY e.starts_at DESC
		 LIMIT $1 OFFSET $2`,
		models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var items []models.AdminEvent
	for rows.Next() {
		var e models.AdminEvent
		if err := rows.Scan(&e.ID, &e.GroupID, &e.CreatorID, &e.Name, &e.Description, &e.StartsAt,
			&e.CityCode, &e.PostalCode, &e.CreatedAt, &e.GroupName, &e.CreatorUsername); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	result := models.NewPage(items, page, total)
	return &result, nil
}

func (s *AdminService) ListRatings(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.AdminRating], error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	total, err := countRows(ctx, s.db, `SELECT COUNT(*) FROM ratings`)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT r.rater_id, r.ratee_id, r.score, r.comment, r.created_at, r.updated_at,
		        rater.username, ratee.username
		 FROM ratings r
		 JOIN users rater ON rater.id = r.rater_id
		 JOIN users ratee ON ratee.id = r.ratee_id
		 ORDER BY r.updated_at DESC
		 LIMIT $1 OFFSET $2`,
		models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("listing ratings: %w", err)
	}
	defer rows.Close()

	var items []models.AdminRating
	for rows.Next() {
		var r models.AdminRating
		if err := rows.Scan(&r.RaterID, &r.RateeID, &r.Score, &r.Comment, &r.CreatedAt, &r.UpdatedAt,
			&r.RaterUsername, &r.RateeUsername); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ratings: %w", err)
	}
	result := models.NewPage(items, page, total)
	return &result, nil
}

func (s *AdminService) DeleteGroup(ctx context.Context, actorID, groupID uuid.UUID) error {
	return s.deleteByID(ctx, actorID, `DELETE FROM groups WHERE id = $1`, groupID, ErrGroupNotFound)
}

func (s *AdminService) DeletePost(ctx context.Context, actorID, postID uuid.UUID) error {
	return s.deleteByID(ctx, actorID, `DELETE FROM group_posts WHERE id = $1`, postID, ErrPostNotFound)
}

func (s *AdminService) DeleteEvent(ctx context.Context, actorID, eventID uuid.UUID) error {
	return s.deleteByID(ctx, actorID, `DELETE FROM events WHERE id = $1`, eventID, ErrEventNotFound)
}

func (s *AdminService) DeleteRating(ctx context.Context, actorID, raterID, rateeID uuid.UUID) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM ratings WHERE rater_id = $1 AND ratee_id = $2`, raterID, rateeID)
	if err != nil {
		return fmt.Errorf("deleting rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRatingNotFound
	}
	return nil
}

func (s *AdminService) deleteByID(ctx context.Context, actorID uuid.UUID, sql string, id uuid.UUID, notFound error) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("admin delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

func countRows(ctx context.Context, q DBConn, sql string) (int, error) {
	var total int
	if err := q.QueryRow(ctx, sql).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return total, nil
}
