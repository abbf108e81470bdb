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
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrUsernameAlreadyExists = errors.New("username already taken")
	ErrInvalidUsername       = errors.New("invalid username")
	ErrInvalidGender         = errors.New("invalid gender")
	ErrUnknownLocation       = errors.New("unknown city or neighborhood")
	ErrUnknownInterest       = errors.New("unknown interest")
)

const userColumns = `id, username, email, password_hash, gender, city_code, postal_code, is_admin, is_restricted, created_at, updated_at`

func scanUser(row Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Gender,
		&user.CityCode, &user.PostalCode, &user.IsAdmin, &user.IsRestricted, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

type UserService struct {
	db DB
}

func NewUserService(db DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	username := strings.TrimSpace(params.Username)
	if len(username) < 3 || len(username) > 50 {
		return nil, ErrInvalidUsername
	}
	if params.Gender == "" {
		params.Gender = models.GenderOther
	}
	if !params.Gender.Valid() {
		return nil, ErrInvalidGender
	}
	email := normalizeEmail(params.Email)

	user, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, gender, city_code, postal_code)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		username, email, params.PasswordHash, params.Gender, params.CityCode, params.PostalCode,
	))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, resolveUserConflict(ctx, s.db, email, username)
		case isForeignKeyViolation(err):
			return nil, ErrUnknownLocation
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`,
		strings.TrimSpace(username),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{User: user}
	profile.CityName, profile.AreaName, err = locationNames(ctx, s.db, user.CityCode, user.PostalCode)
	if err != nil {
		return nil, err
	}
	profile.Interests, err = userInterests(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile replaces the user's location, gender and interest set in
// one transaction.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.Profile, error) {
	if !params.Gender.Valid() {
		return nil, ErrInvalidGender
	}
	interestIDs := dedupeIDs(params.InterestIDs)

	err := runInTx(ctx, s.db, func(tx Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET gender = $2, city_code = $3, postal_code = $4, updated_at = NOW() WHERE id = $1`,
			userID, params.Gender, params.CityCode, params.PostalCode,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrUnknownLocation
			}
			return fmt.Errorf("updating profile: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM user_interests WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clearing interests: %w", err)
		}
		if len(interestIDs) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_interests (user_id, interest_id)
			 SELECT $1::uuid, unnest($2::uuid[])`,
			userID, interestIDs,
		); err != nil {
			if isForeignKeyViolation(err) {
				return ErrUnknownInterest
			}
			return fmt.Errorf("saving interests: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// GetPublicProfile assembles what viewer may see about another user,
// including the rating summary and the request status between them.
func (s *UserService) GetPublicProfile(ctx context.Context, viewerID, userID uuid.UUID) (*models.PublicProfile, error) {
	if err := requireActor(viewerID); err != nil {
		return nil, err
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &models.PublicProfile{
		ID:             user.ID,
		Username:       user.Username,
		Gender:         user.Gender,
		RelationStatus: models.RelationNone,
	}
	if profile.CityName, profile.AreaName, err = locationNames(ctx, s.db, user.CityCode, user.PostalCode); err != nil {
		return nil, err
	}
	if profile.Interests, err = userInterests(ctx, s.db, userID); err != nil {
		return nil, err
	}
	if profile.Rating, err = ratingSummary(ctx, s.db, userID); err != nil {
		return nil, err
	}
	if profile.Reviews, err = listReviews(ctx, s.db, userID); err != nil {
		return nil, err
	}

	if viewerID != userID {
		if profile.IsFriend, err = areFriends(ctx, s.db, viewerID, userID); err != nil {
			return nil, err
		}
		statuses, err := requestStatuses(ctx, s.db, viewerID, []uuid.UUID{userID})
		if err != nil {
			return nil, err
		}
		profile.RelationStatus = statuses[userID]
	}
	return profile, nil
}

func locationNames(ctx context.Context, q DBConn, cityCode, postalCode *string) (*string, *string, error) {
	if cityCode == nil && postalCode == nil {
		return nil, nil, nil
	}
	var cityName, areaName *string
	err := q.QueryRow(ctx,
		`SELECT (SELECT name FROM cities WHERE code = $1),
		        (SELECT area_name FROM neighborhoods WHERE postal_code = $2)`,
		cityCode, postalCode,
	).Scan(&cityName, &areaName)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving location names: %w", err)
	}
	return cityName, areaName, nil
}

func userInterests(ctx context.Context, q DBConn, userID uuid.UUID) ([]models.Interest, error) {
	rows, err := q.Query(ctx,
		`SELECT i.id, i.name, i.category, i.created_at
		 FROM user_interests ui
		 JOIN interests i ON i.id = ui.interest_id
		 WHERE ui.user_id = $1
		 ORDER BY i.category, i.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user interests: %w", err)
	}
	defer rows.Close()

	interests := []models.Interest{}
	for rows.Next() {
		var interest models.Interest
		if err := rows.Scan(&interest.ID, &interest.Name, &interest.Category, &interest.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning interest: %w", err)
		}
		interests = append(interests, interest)
	}
	return interests, rows.Err()
}

// resolveUserConflict reports which unique column an insert collided with.
func resolveUserConflict(ctx context.Context, q DBConn, email, username string) error {
	var emailTaken, usernameTaken bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1)),
		        EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($2))`,
		email, username,
	).Scan(&emailTaken, &usernameTaken)
	if err != nil {
		return fmt.Errorf("checking user conflict: %w", err)
	}
	if emailTaken {
		return ErrEmailAlreadyExists
	}
	return ErrUsernameAlreadyExists
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
