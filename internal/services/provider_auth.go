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
	ErrInvalidProviderClaims   = errors.New("invalid provider claims")
	ErrProviderEmailUnverified = errors.New("provider email not verified")
	ErrProviderIdentityExists  = errors.New("provider identity already linked")
	ErrInvalidProviderPending  = errors.New("invalid provider pending record")
)

// PendingProviderUser is a verified identity that has no account yet. It
// waits in the session store until the person picks a username.
type PendingProviderUser struct {
	Provider Provider `json:"provider"`
	Subject  string   `json:"subject"`
	Email    string   `json:"email"`
	Name     string   `json:"name,omitempty"`
}

type ProviderLinkResult struct {
	User    *models.User
	Pending *PendingProviderUser
}

type ProviderAuthService struct {
	db DB
}

func NewProviderAuthService(db DB) *ProviderAuthService {
	return &ProviderAuthService{db: db}
}

// LinkOrFindUserFromProvider resolves a verified identity to an account. A
// known identity signs straight in; an unknown identity whose verified email
// matches an account is linked to it; anything else becomes pending.
func (s *ProviderAuthService) LinkOrFindUserFromProvider(ctx context.Context, claims IdentityClaims) (*ProviderLinkResult, error) {
	subject := strings.TrimSpace(claims.Subject)
	if strings.TrimSpace(string(claims.Provider)) == "" || subject == "" {
		return nil, ErrInvalidProviderClaims
	}

	user, err := s.userByIdentity(ctx, claims.Provider, subject)
	switch {
	case err == nil:
		return signedIn(user)
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	email := normalizeEmail(claims.Email)
	if email == "" || !claims.EmailVerified {
		return nil, ErrProviderEmailUnverified
	}

	user, err = scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return &ProviderLinkResult{Pending: &PendingProviderUser{
			Provider: claims.Provider,
			Subject:  subject,
			Email:    email,
			Name:     strings.TrimSpace(claims.Name),
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}

	if err := linkIdentity(ctx, s.db, user.ID, claims.Provider, subject, email); err != nil {
		if !errors.Is(err, ErrProviderIdentityExists) {
			return nil, err
		}
		// Lost a race with a concurrent callback for the same identity.
		existing, lookupErr := s.userByIdentity(ctx, claims.Provider, subject)
		if lookupErr != nil {
			return nil, err
		}
		return signedIn(existing)
	}
	return signedIn(user)
}

// CreateUserFromProviderPending creates the account and its identity link
// together.
func (s *ProviderAuthService) CreateUserFromProviderPending(ctx context.Context, pending PendingProviderUser, username string, gender models.Gender) (*models.User, error) {
	email := normalizeEmail(pending.Email)
	if strings.TrimSpace(string(pending.Provider)) == "" || strings.TrimSpace(pending.Subject) == "" || email == "" {
		return nil, ErrInvalidProviderPending
	}
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 50 {
		return nil, ErrInvalidUsername
	}
	if gender == "" {
		gender = models.GenderOther
	}
	if !gender.Valid() {
		return nil, ErrInvalidGender
	}

	var user *models.User
	err := runInTx(ctx, s.db, func(tx Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx,
			`INSERT INTO users (username, email, password_hash, gender)
			 VALUES ($1, $2, NULL, $3)
			 RETURNING `+userColumns,
			username, email, gender,
		))
		if err != nil {
			if isUniqueViolation(err) {
				return resolveUserConflict(ctx, tx, email, username)
			}
			return fmt.Errorf("creating user: %w", err)
		}
		return linkIdentity(ctx, tx, user.ID, pending.Provider, pending.Subject, email)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ProviderAuthService) userByIdentity(ctx context.Context, provider Provider, subject string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+prefixedUserColumns("u")+`
		 FROM user_identities ui
		 JOIN users u ON u.id = ui.user_id
		 WHERE ui.provider = $1 AND ui.subject = $2`,
		provider, subject,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by identity: %w", err)
	}
	return user, nil
}

func signedIn(user *models.User) (*ProviderLinkResult, error) {
	if user.IsRestricted {
		return nil, ErrUserRestricted
	}
	return &ProviderLinkResult{User: user}, nil
}

func linkIdentity(ctx context.Context, q DBConn, userID uuid.UUID, provider Provider, subject, email string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO user_identities (user_id, provider, subject, email_at_link_time)
		 VALUES ($1, $2, $3, $4)`,
		userID, provider, subject, email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProviderIdentityExists
		}
		return fmt.Errorf("linking identity: %w", err)
	}
	return nil
}

func prefixedUserColumns(alias string) string {
	cols := strings.Split(userColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
