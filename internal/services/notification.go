package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ryokrieger/CityConnect/internal/logging"
	"github.com/ryokrieger/CityConnect/internal/metrics"
)

const notificationSendTimeout = 15 * time.Second

// NotificationService emails users about friend request activity. Sends run
// off the request path; failures are logged and counted, never returned to
// the caller that triggered them.
type NotificationService struct {
	db       DB
	email    EmailSender
	baseURL  string
	async    func(func())
	asyncCtx func() (context.Context, context.CancelFunc)
}

func NewNotificationService(db DB, email EmailSender, baseURL string) *NotificationService {
	return &NotificationService{
		db:      db,
		email:   email,
		baseURL: baseURL,
		async:   func(fn func()) { go fn() },
		asyncCtx: func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), notificationSendTimeout)
		},
	}
}

// SetAsync replaces the goroutine launcher, mainly so tests can run sends inline.
func (s *NotificationService) SetAsync(fn func(func())) {
	s.async = fn
}

func (s *NotificationService) NotifyFriendRequestReceived(ctx context.Context, receiverID, senderID uuid.UUID) error {
	to, err := s.contact(ctx, receiverID)
	if err != nil {
		return err
	}
	from, err := s.contact(ctx, senderID)
	if err != nil {
		return err
	}
	subject, html, text := buildFriendRequestEmail(from.username, s.baseURL)
	s.dispatch("friend_request", to.email, subject, html, text)
	return nil
}

func (s *NotificationService) NotifyFriendRequestAccepted(ctx context.Context, senderID, receiverID uuid.UUID) error {
	to, err := s.contact(ctx, senderID)
	if err != nil {
		return err
	}
	by, err := s.contact(ctx, receiverID)
	if err != nil {
		return err
	}
	subject, html, text := buildFriendAcceptedEmail(by.username, s.baseURL)
	s.dispatch("friend_accepted", to.email, subject, html, text)
	return nil
}

type userContact struct {
	username string
	email    string
}

func (s *NotificationService) contact(ctx context.Context, userID uuid.UUID) (userContact, error) {
	var c userContact
	err := s.db.QueryRow(ctx, `SELECT username, email FROM users WHERE id = $1`, userID).Scan(&c.username, &c.email)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrUserNotFound
	}
	if err != nil {
		return c, fmt.Errorf("loading notification contact: %w", err)
	}
	return c, nil
}

func (s *NotificationService) dispatch(kind, to, subject, html, text string) {
	s.async(func() {
		ctx := context.Background()
		cancel := func() {}
		if s.asyncCtx != nil {
			ctx, cancel = s.asyncCtx()
		}
		defer cancel()

		err := s.email.SendNotificationEmail(ctx, to, subject, html, text)
		metrics.RecordNotificationEmail(kind, err)
		if err != nil {
			logging.Error("Failed to send notification email", map[string]interface{}{
				"kind":  kind,
				"error": err.Error(),
			})
		}
	})
}

func buildFriendRequestEmail(senderName, baseURL string) (string, string, string) {
	subject := fmt.Sprintf("%s wants to connect on CityConnect", senderName)
	link := fmt.Sprintf("%s/friends/requests", baseURL)
	return subject,
		renderEmail(fmt.Sprintf("<strong>%s</strong> sent you a friend request.", templateEscape(senderName)), link, "Review request"),
		fmt.Sprintf("%s sent you a friend request.\n\nReview request: %s\n\n--\nCityConnect", senderName, link)
}

func buildFriendAcceptedEmail(accepterName, baseURL string) (string, string, string) {
	subject := fmt.Sprintf("%s accepted your friend request", accepterName)
	link := fmt.Sprintf("%s/friends", baseURL)
	return subject,
		renderEmail(fmt.Sprintf("<strong>%s</strong> accepted your friend request.", templateEscape(accepterName)), link, "See your friends"),
		fmt.Sprintf("%s accepted your friend request.\n\nSee your friends: %s\n\n--\nCityConnect", accepterName, link)
}

// renderEmail wraps an already escaped message in the shared layout.
func renderEmail(messageHTML, link, linkLabel string) string {
	safeLink := templateEscape(link)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 24px;">
  <h1 style="color: #333; font-size: 24px;">CityConnect</h1>
  <p style="font-size: 16px;">%s</p>
  <p>
    <a href="%s" style="display: inline-block; background: #1f5fa8; color: white; padding: 10px 18px; text-decoration: none; border-radius: 6px;">%s</a>
  </p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
  <p style="color: #999; font-size: 12px;">You are receiving this because you have a CityConnect account.</p>
</body>
</html>`, messageHTML, safeLink, templateEscape(linkLabel))
}
