package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ryokrieger/CityConnect/internal/models"
)

var ErrInvalidMessage = errors.New("message must be between 1 and 2000 characters")

const MaxMessageLength = 2000

type MessageService struct {
	db DB
}

func NewMessageService(db DB) *MessageService {
	return &MessageService{db: db}
}

// Send stores a message between two friends. The friendship check and the
// insert are a single statement.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	if err := requireActor(senderID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrInvalidMessage
	}

	msg := &models.Message{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content)
		 SELECT $1::uuid, $2::uuid, $3::text
		 WHERE EXISTS (
			SELECT 1 FROM friendships
			WHERE (user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1)
		 )
		 RETURNING id, sender_id, receiver_id, content, created_at`,
		senderID, receiverID, content,
	).Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFriends
	}
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return msg, nil
}

// Conversation returns the messages between userID and friendID, oldest first.
func (s *MessageService) Conversation(ctx context.Context, userID, friendID uuid.UUID) ([]models.Message, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	friends, err := areFriends(ctx, s.db, userID, friendID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, ErrNotFriends
	}

	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.sender_id, u.username, m.receiver_id, m.content, m.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE (m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1)
		 ORDER BY m.created_at ASC, m.id ASC`,
		userID, friendID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.SenderUsername, &msg.ReceiverID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}
