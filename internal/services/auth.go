package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ryokrieger/CityConnect/internal/models"
)

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserRestricted     = errors.New("account is restricted")
	ErrSessionNotFound    = errors.New("session not found")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

const (
	minPasswordLength  = 8
	sessionTokenBytes  = 32
	sessionRedisPrefix = "session:"
)

// requireActor rejects calls that carry no authenticated user.
func requireActor(id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrUnauthenticated
	}
	return nil
}

type AuthService struct {
	db         DB
	redis      RedisClient
	sessionTTL time.Duration
	bcryptCost int

	dummyOnce sync.Once
	dummy     []byte
}

func NewAuthService(db DB, redis RedisClient, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		db:         db,
		redis:      redis,
		sessionTTL: sessionTTL,
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummy, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
	})
	return s.dummy
}

func (s *AuthService) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords produce the same error.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`,
		username,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Spend comparable time so unknown usernames are not distinguishable.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading user for login: %w", err)
	}
	if user.PasswordHash == nil || !s.VerifyPassword(*user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if user.IsRestricted {
		return nil, ErrUserRestricted
	}
	return user, nil
}

// CreateSession issues an opaque token. Only its hash is stored.
func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	hash := hashToken(token)

	_, err := s.db.Exec(ctx,
		`INSERT INTO sessions (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, hash, time.Now().Add(s.sessionTTL),
	)
	if err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}

	// Postgres is the source of truth; a failed cache write refills on read.
	_ = s.redis.Set(ctx, sessionRedisPrefix+hash, userID.String(), s.sessionTTL)
	return token, nil
}

// ValidateSession resolves a token to its user, reading the cache first.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrSessionNotFound
	}
	hash := hashToken(token)

	if cached, err := s.redis.Get(ctx, sessionRedisPrefix+hash); err == nil && cached != "" {
		if id, parseErr := uuid.Parse(cached); parseErr == nil {
			return id, nil
		}
	}

	var userID uuid.UUID
	var expiresAt time.Time
	err := s.db.QueryRow(ctx,
		`SELECT user_id, expires_at FROM sessions WHERE token_hash = $1 AND expires_at > NOW()`,
		hash,
	).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrSessionNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("loading session: %w", err)
	}

	if ttl := time.Until(expiresAt); ttl > 0 {
		_ = s.redis.Set(ctx, sessionRedisPrefix+hash, userID.String(), ttl)
	}
	return userID, nil
}

func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	hash := hashToken(token)
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, hash); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	_ = s.redis.Del(ctx, sessionRedisPrefix+hash)
	return nil
}

// DeleteUserSessions signs a user out everywhere.
func (s *AuthService) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx, `DELETE FROM sessions WHERE user_id = $1 RETURNING token_hash`, userID)
	if err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return fmt.Errorf("scanning session hash: %w", err)
		}
		keys = append(keys, sessionRedisPrefix+hash)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating session hashes: %w", err)
	}
	if len(keys) > 0 {
		_ = s.redis.Del(ctx, keys...)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
