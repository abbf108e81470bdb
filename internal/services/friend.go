package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ryokrieger/CityConnect/internal/logging"
	"github.com/ryokrieger/CityConnect/internal/metrics"
	"github.com/ryokrieger/CityConnect/internal/models"
)

var (
	ErrCannotFriendSelf      = errors.New("cannot send a friend request to yourself")
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrNotRequestReceiver    = errors.New("only the receiver can respond to this request")
	ErrRequestNotPending     = errors.New("friend request is no longer pending")
	ErrNotFriends            = errors.New("users are not friends")
)

// FriendNotifier is told about request events after they commit.
type FriendNotifier interface {
	NotifyFriendRequestReceived(ctx context.Context, receiverID, senderID uuid.UUID) error
	NotifyFriendRequestAccepted(ctx context.Context, senderID, receiverID uuid.UUID) error
}

type FriendService struct {
	db       DB
	notifier FriendNotifier
}

func NewFriendService(db DB) *FriendService {
	return &FriendService{db: db}
}

func (s *FriendService) SetNotifier(notifier FriendNotifier) {
	s.notifier = notifier
}

// SendRequest creates a pending request from sender to receiver. It returns
// false without error when the pair are already friends or an identical
// request is already pending. A previously declined request is reopened.
func (s *FriendService) SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (bool, error) {
	if err := requireActor(senderID); err != nil {
		return false, err
	}
	if senderID == receiverID {
		return false, ErrCannotFriendSelf
	}

	created := false
	err := runInTx(ctx, s.db, func(tx Tx) error {
		if err := lockUsers(ctx, tx, senderID, receiverID); err != nil {
			return err
		}

		friends, err := areFriends(ctx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if friends {
			return nil
		}

		var requestID uuid.UUID
		err = tx.QueryRow(ctx,
			`INSERT INTO friend_requests (sender_id, receiver_id, status)
			 VALUES ($1, $2, 'pending')
			 ON CONFLICT (sender_id, receiver_id) DO UPDATE
			 SET status = 'pending', created_at = NOW(), updated_at = NOW()
			 WHERE friend_requests.status <> 'pending'
			 RETURNING id`,
			senderID, receiverID,
		).Scan(&requestID)
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict with a row that is already pending.
			return nil
		}
		if isCheckViolation(err) {
			return ErrCannotFriendSelf
		}
		if err != nil {
			return fmt.Errorf("inserting friend request: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if created {
		metrics.RecordFriendRequestTransition("sent")
		s.notify(ctx, "received", func(n FriendNotifier) error {
			return n.NotifyFriendRequestReceived(ctx, receiverID, senderID)
		})
	}
	return created, nil
}

// CancelRequest withdraws userID's pending request to receiverID. Missing or
// already answered requests are left alone.
func (s *FriendService) CancelRequest(ctx context.Context, userID, receiverID uuid.UUID) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM friend_requests WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'`,
		userID, receiverID,
	)
	if err != nil {
		return fmt.Errorf("cancelling friend request: %w", err)
	}
	if tag.RowsAffected() > 0 {
		metrics.RecordFriendRequestTransition("cancelled")
	}
	return nil
}

// AcceptRequest marks the request accepted and creates the friendship in
// the same transaction. Only the receiver may accept.
func (s *FriendService) AcceptRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	var accepted *models.FriendRequest
	err := runInTx(ctx, s.db, func(tx Tx) error {
		request, err := s.lockPendingRequest(ctx, tx, actorID, requestID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE friend_requests SET status = 'accepted', updated_at = NOW() WHERE id = $1`,
			request.ID,
		); err != nil {
			return fmt.Errorf("accepting friend request: %w", err)
		}

		// A crossing request in the other direction is settled by this accept.
		if _, err := tx.Exec(ctx,
			`UPDATE friend_requests SET status = 'accepted', updated_at = NOW()
			 WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'`,
			request.ReceiverID, request.SenderID,
		); err != nil {
			return fmt.Errorf("settling reverse request: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO friendships (user1_id, user2_id)
			 VALUES (LEAST($1::uuid, $2::uuid), GREATEST($1::uuid, $2::uuid))
			 ON CONFLICT DO NOTHING`,
			request.SenderID, request.ReceiverID,
		); err != nil {
			return fmt.Errorf("creating friendship: %w", err)
		}

		request.Status = models.FriendRequestAccepted
		accepted = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordFriendRequestTransition("accepted")
	s.notify(ctx, "accepted", func(n FriendNotifier) error {
		return n.NotifyFriendRequestAccepted(ctx, accepted.SenderID, accepted.ReceiverID)
	})
	return accepted, nil
}

// DeclineRequest marks a pending request declined. The row is kept.
func (s *FriendService) DeclineRequest(ctx context.Context, actorID, requestID uuid.UUID) error {
	if err := requireActor(actorID); err != nil {
		return err
	}

	err := runInTx(ctx, s.db, func(tx Tx) error {
		request, err := s.lockPendingRequest(ctx, tx, actorID, requestID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE friend_requests SET status = 'declined', updated_at = NOW() WHERE id = $1`,
			request.ID,
		); err != nil {
			return fmt.Errorf("declining friend request: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.RecordFriendRequestTransition("declined")
	return nil
}

// lockPendingRequest loads a request for update and checks that actorID
// may answer it. The pair's user rows are locked first so that request
// transitions and sends for the same pair serialize in one order.
func (s *FriendService) lockPendingRequest(ctx context.Context, tx Tx, actorID, requestID uuid.UUID) (*models.FriendRequest, error) {
	var senderID, receiverID uuid.UUID
	err := tx.QueryRow(ctx,
		`SELECT sender_id, receiver_id FROM friend_requests WHERE id = $1`,
		requestID,
	).Scan(&senderID, &receiverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading friend request: %w", err)
	}
	if receiverID != actorID {
		return nil, ErrNotRequestReceiver
	}

	if err := lockUsers(ctx, tx, senderID, receiverID); err != nil {
		return nil, err
	}

	request := &models.FriendRequest{}
	err = tx.QueryRow(ctx,
		`SELECT id, sender_id, receiver_id, status, created_at, updated_at
		 FROM friend_requests WHERE id = $1 FOR UPDATE`,
		requestID,
	).Scan(&request.ID, &request.SenderID, &request.ReceiverID, &request.Status, &request.CreatedAt, &request.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking friend request: %w", err)
	}
	if request.Status != models.FriendRequestPending {
		return nil, ErrRequestNotPending
	}
	return request, nil
}

// Unfriend removes the friendship and the accepted requests between the
// pair so either side can send a fresh request later.
func (s *FriendService) Unfriend(ctx context.Context, userID, otherID uuid.UUID) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	if userID == otherID {
		return nil
	}

	removed := false
	err := runInTx(ctx, s.db, func(tx Tx) error {
		if err := lockUsers(ctx, tx, userID, otherID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM friendships
			 WHERE (user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1)`,
			userID, otherID,
		)
		if err != nil {
			return fmt.Errorf("deleting friendship: %w", err)
		}
		removed = tag.RowsAffected() > 0

		if _, err := tx.Exec(ctx,
			`DELETE FROM friend_requests
			 WHERE status = 'accepted'
			   AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))`,
			userID, otherID,
		); err != nil {
			return fmt.Errorf("deleting accepted requests: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if removed {
		metrics.RecordFriendRequestTransition("unfriended")
	}
	return nil
}

// ListIncoming pages through pending requests addressed to userID, newest first.
func (s *FriendService) ListIncoming(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.IncomingRequest], error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}

	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM friend_requests WHERE receiver_id = $1 AND status = 'pending'`,
		userID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting incoming requests: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT fr.id, fr.sender_id, u.username, u.email, fr.created_at
		 FROM friend_requests fr
		 JOIN users u ON u.id = fr.sender_id
		 WHERE fr.receiver_id = $1 AND fr.status = 'pending'
		 ORDER BY fr.created_at DESC, u.username ASC
		 LIMIT $2 OFFSET $3`,
		userID, models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("listing incoming requests: %w", err)
	}
	defer rows.Close()

	var items []models.IncomingRequest
	for rows.Next() {
		var item models.IncomingRequest
		if err := rows.Scan(&item.ID, &item.SenderID, &item.SenderUsername, &item.SenderEmail, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning incoming request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating incoming requests: %w", err)
	}

	result := models.NewPage(items, page, total)
	return &result, nil
}

// ListFriends pages through userID's friends ordered by username.
func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.Friend], error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}

	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM friendships WHERE user1_id = $1 OR user2_id = $1`,
		userID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting friends: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, u.email, c.name, n.area_name, f.created_at
		 FROM friendships f
		 JOIN users u ON u.id = CASE WHEN f.user1_id = $1 THEN f.user2_id ELSE f.user1_id END
		 LEFT JOIN cities c ON c.code = u.city_code
		 LEFT JOIN neighborhoods n ON n.postal_code = u.postal_code
		 WHERE f.user1_id = $1 OR f.user2_id = $1
		 ORDER BY u.username ASC
		 LIMIT $2 OFFSET $3`,
		userID, models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	var items []models.Friend
	for rows.Next() {
		var item models.Friend
		if err := rows.Scan(&item.ID, &item.Username, &item.Email, &item.CityName, &item.AreaName, &item.Since); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friends: %w", err)
	}

	result := models.NewPage(items, page, total)
	return &result, nil
}

func (s *FriendService) AreFriends(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	return areFriends(ctx, s.db, userID, otherID)
}

func (s *FriendService) notify(ctx context.Context, event string, fn func(FriendNotifier) error) {
	if s.notifier == nil {
		return
	}
	if err := fn(s.notifier); err != nil {
		logging.Warn("Friend request notification failed", map[string]interface{}{
			"event": event,
			"error": err.Error(),
		})
	}
}

func areFriends(ctx context.Context, q DBConn, userID, otherID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friendships
			WHERE (user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1)
		)`,
		userID, otherID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return exists, nil
}

// requestStatuses classifies the requests between viewer and each of others
// from the viewer's side. Users with no request map to RelationNone.
func requestStatuses(ctx context.Context, q DBConn, viewerID uuid.UUID, others []uuid.UUID) (map[uuid.UUID]models.RelationStatus, error) {
	statuses := make(map[uuid.UUID]models.RelationStatus, len(others))
	for _, id := range others {
		statuses[id] = models.RelationNone
	}
	if len(others) == 0 {
		return statuses, nil
	}

	rows, err := q.Query(ctx,
		`SELECT sender_id, receiver_id, status
		 FROM friend_requests
		 WHERE (sender_id = $1 AND receiver_id = ANY($2))
		    OR (receiver_id = $1 AND sender_id = ANY($2))`,
		viewerID, others,
	)
	if err != nil {
		return nil, fmt.Errorf("loading request statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var senderID, receiverID uuid.UUID
		var status models.FriendRequestStatus
		if err := rows.Scan(&senderID, &receiverID, &status); err != nil {
			return nil, fmt.Errorf("scanning request status: %w", err)
		}
		other := receiverID
		if senderID != viewerID {
			other = senderID
		}
		statuses[other] = statuses[other].Stronger(models.ClassifyRequest(viewerID, senderID, status))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating request statuses: %w", err)
	}
	return statuses, nil
}
