package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ryokrieger/CityConnect/internal/metrics"
	"github.com/ryokrieger/CityConnect/internal/models"
)

var (
	ErrCannotRateSelf       = errors.New("cannot rate yourself")
	ErrInvalidRatingScore   = errors.New("rating must be between 1 and 5")
	ErrRatingNotFound       = errors.New("rating not found")
	ErrRatingCommentTooLong = errors.New("comment is too long")
)

const MaxRatingCommentLength = 1000

type RatingService struct {
	db DB
}

func NewRatingService(db DB) *RatingService {
	return &RatingService{db: db}
}

// Submit records rater's score for ratee, replacing any earlier one. The
// pair must be friends now or have an accepted request in either direction.
func (s *RatingService) Submit(ctx context.Context, raterID, rateeID uuid.UUID, score int, comment string) (*models.Rating, error) {
	if err := requireActor(raterID); err != nil {
		return nil, err
	}
	if raterID == rateeID {
		return nil, ErrCannotRateSelf
	}
	if score < models.MinRatingScore || score > models.MaxRatingScore {
		return nil, ErrInvalidRatingScore
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > MaxRatingCommentLength {
		return nil, ErrRatingCommentTooLong
	}

	var rating *models.Rating
	err := runInTx(ctx, s.db, func(tx Tx) error {
		// Unfriend takes the same locks, so eligibility cannot change under us.
		if err := lockUsers(ctx, tx, raterID, rateeID); err != nil {
			return err
		}

		eligible, err := canRate(ctx, tx, raterID, rateeID)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrNotFriends
		}

		rating = &models.Rating{}
		err = tx.QueryRow(ctx,
			`INSERT INTO ratings (rater_id, ratee_id, score, comment)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (rater_id, ratee_id) DO UPDATE
			 SET score = EXCLUDED.score, comment = EXCLUDED.comment, updated_at = NOW()
			 RETURNING rater_id, ratee_id, score, comment, created_at, updated_at`,
			raterID, rateeID, score, comment,
		).Scan(&rating.RaterID, &rating.RateeID, &rating.Score, &rating.Comment, &rating.CreatedAt, &rating.UpdatedAt)
		if isCheckViolation(err) {
			return ErrInvalidRatingScore
		}
		if err != nil {
			return fmt.Errorf("saving rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordRatingSubmitted()
	return rating, nil
}

// Delete removes rater's own rating of ratee. A missing rating is not an error.
func (s *RatingService) Delete(ctx context.Context, raterID, rateeID uuid.UUID) error {
	if err := requireActor(raterID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx,
		`DELETE FROM ratings WHERE rater_id = $1 AND ratee_id = $2`,
		raterID, rateeID,
	); err != nil {
		return fmt.Errorf("deleting rating: %w", err)
	}
	return nil
}

// Get returns rater's current rating of ratee.
func (s *RatingService) Get(ctx context.Context, raterID, rateeID uuid.UUID) (*models.Rating, error) {
	if err := requireActor(raterID); err != nil {
		return nil, err
	}
	rating := &models.Rating{}
	err := s.db.QueryRow(ctx,
		`SELECT rater_id, ratee_id, score, comment, created_at, updated_at
		 FROM ratings WHERE rater_id = $1 AND ratee_id = $2`,
		raterID, rateeID,
	).Scan(&rating.RaterID, &rating.RateeID, &rating.Score, &rating.Comment, &rating.CreatedAt, &rating.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRatingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting rating: %w", err)
	}
	return rating, nil
}

func (s *RatingService) AverageRating(ctx context.Context, rateeID uuid.UUID) (models.RatingSummary, error) {
	return ratingSummary(ctx, s.db, rateeID)
}

func (s *RatingService) ListReviews(ctx context.Context, rateeID uuid.UUID) ([]models.Review, error) {
	return listReviews(ctx, s.db, rateeID)
}

// CanRate reports whether rater currently qualifies to rate ratee.
func (s *RatingService) CanRate(ctx context.Context, raterID, rateeID uuid.UUID) (bool, error) {
	if raterID == rateeID {
		return false, nil
	}
	return canRate(ctx, s.db, raterID, rateeID)
}

func canRate(ctx context.Context, q DBConn, raterID, rateeID uuid.UUID) (bool, error) {
	var eligible bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friendships
			WHERE (user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1)
		) OR EXISTS(
			SELECT 1 FROM friend_requests
			WHERE status = 'accepted'
			  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		)`,
		raterID, rateeID,
	).Scan(&eligible)
	if err != nil {
		return false, fmt.Errorf("checking rating eligibility: %w", err)
	}
	return eligible, nil
}

func ratingSummary(ctx context.Context, q DBConn, rateeID uuid.UUID) (models.RatingSummary, error) {
	var sum, count int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(SUM(score), 0), COUNT(*) FROM ratings WHERE ratee_id = $1`,
		rateeID,
	).Scan(&sum, &count)
	if err != nil {
		return models.RatingSummary{}, fmt.Errorf("averaging ratings: %w", err)
	}
	return newRatingSummary(sum, count), nil
}

// newRatingSummary rounds sum/count to two decimals, ties to even, using
// integer arithmetic.
func newRatingSummary(sum, count int64) models.RatingSummary {
	if count <= 0 {
		return models.RatingSummary{Label: models.NoRatingsLabel}
	}
	hundredths, rem := (sum*100)/count, (sum*100)%count
	if twice := 2 * rem; twice > count || (twice == count && hundredths%2 == 1) {
		hundredths++
	}
	rounded := float64(hundredths) / 100
	return models.RatingSummary{
		Average: &rounded,
		Count:   int(count),
		Label:   strconv.FormatFloat(rounded, 'f', -1, 64),
	}
}

func listReviews(ctx context.Context, q DBConn, rateeID uuid.UUID) ([]models.Review, error) {
	rows, err := q.Query(ctx,
		`SELECT r.rater_id, u.username, r.score, r.comment, r.updated_at
		 FROM ratings r
		 JOIN users u ON u.id = r.rater_id
		 WHERE r.ratee_id = $1
		 ORDER BY r.updated_at DESC`,
		rateeID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var review models.Review
		if err := rows.Scan(&review.RaterID, &review.RaterUsername, &review.Score, &review.Comment, &review.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reviews: %w", err)
	}
	return reviews, nil
}
