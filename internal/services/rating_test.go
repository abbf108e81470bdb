package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ryokrieger/CityConnect/internal/models"
)

func TestRatingService_Submit_Validation(t *testing.T) {
	svc := NewRatingService(&fakeDB{})
	id := uuid.New()

	tests := []struct {
		name    string
		rater   uuid.UUID
		ratee   uuid.UUID
		score   int
		comment string
		want    error
	}{
		{"anonymous", uuid.Nil, id, 3, "", ErrUnauthenticated},
		{"self", id, id, 3, "", ErrCannotRateSelf},
		{"too low", id, uuid.New(), 0, "", ErrInvalidRatingScore},
		{"too high", id, uuid.New(), 6, "", ErrInvalidRatingScore},
		{"long comment", id, uuid.New(), 4, strings.Repeat("é", MaxRatingCommentLength+1), ErrRatingCommentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Submit(context.Background(), tt.rater, tt.ratee, tt.score, tt.comment); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRatingService_Submit_RequiresRelationship(t *testing.T) {
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case isUserLock(sql):
				return rowFromValues(args[0])
			case strings.Contains(sql, "FROM friendships"):
				return rowFromValues(false)
			case strings.Contains(sql, "INSERT INTO ratings"):
				t.Fatal("did not expect a write")
			}
			t.Fatalf("unexpected sql: %q", sql)
			return nil
		},
	}
	svc := NewRatingService(&fakeDB{BeginFunc: beginReturning(tx)})

	if _, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), 5, "great"); !errors.Is(err, ErrNotFriends) {
		t.Fatalf("expected ErrNotFriends, got %v", err)
	}
	if tx.committed {
		t.Fatal("did not expect commit")
	}
}

func TestRatingService_CanRate_OnlyCurrentOrAcceptedLinks(t *testing.T) {
	var eligibilitySQL string
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			eligibilitySQL = sql
			return rowFromValues(false)
		},
	}
	svc := NewRatingService(db)

	ok, err := svc.CanRate(context.Background(), uuid.New(), uuid.New())
	if err != nil || ok {
		t.Fatalf("expected ineligible, got %v %v", ok, err)
	}
	for _, status := range []string{"'pending'", "'declined'"} {
		if strings.Contains(eligibilitySQL, status) {
			t.Fatalf("eligibility must not count %s requests: %q", status, eligibilitySQL)
		}
	}

	id := uuid.New()
	if ok, err := svc.CanRate(context.Background(), id, id); err != nil || ok {
		t.Fatalf("expected self rating to be ineligible, got %v %v", ok, err)
	}
}

func TestRatingService_Submit_Upserts(t *testing.T) {
	rater, ratee := uuid.New(), uuid.New()
	now := time.Now()
	var eligibilitySQL string
	var insertArgs []any
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case isUserLock(sql):
				return rowFromValues(args[0])
			case strings.Contains(sql, "FROM friendships"):
				eligibilitySQL = sql
				return rowFromValues(true)
			case strings.Contains(sql, "INSERT INTO ratings"):
				if !strings.Contains(sql, "ON CONFLICT (rater_id, ratee_id) DO UPDATE") {
					t.Fatalf("expected upsert: %q", sql)
				}
				insertArgs = args
				return rowFromValues(args[0], args[1], args[2], args[3], now, now)
			}
			t.Fatalf("unexpected sql: %q", sql)
			return nil
		},
	}
	svc := NewRatingService(&fakeDB{BeginFunc: beginReturning(tx)})

	rating, err := svc.Submit(context.Background(), rater, ratee, 4, "  kind and punctual  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rating.Score != 4 || rating.Comment != "kind and punctual" {
		t.Fatalf("unexpected rating: %+v", rating)
	}
	if insertArgs[0] != rater || insertArgs[1] != ratee {
		t.Fatalf("unexpected insert args: %v", insertArgs)
	}
	if !strings.Contains(eligibilitySQL, "status = 'accepted'") {
		t.Fatal("expected accepted requests to count toward eligibility")
	}
	if !tx.committed {
		t.Fatal("expected commit")
	}
}

func TestRatingService_Delete(t *testing.T) {
	rater, ratee := uuid.New(), uuid.New()
	log := &execLog{}
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			log.record(sql, args)
			return fakeCommandTag{}, nil
		},
	}
	svc := NewRatingService(db)

	if err := svc.Delete(context.Background(), rater, ratee); err != nil {
		t.Fatalf("expected no-op delete to succeed, got %v", err)
	}
	call, ok := log.find("DELETE FROM ratings")
	if !ok || call.args[0] != rater || call.args[1] != ratee {
		t.Fatalf("expected delete scoped to the rater, got %+v", call)
	}
}

func TestRatingService_Get_NotFound(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return errRow(pgx.ErrNoRows)
		},
	}
	svc := NewRatingService(db)
	if _, err := svc.Get(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrRatingNotFound) {
		t.Fatalf("expected ErrRatingNotFound, got %v", err)
	}
}

func TestRatingService_AverageRating(t *testing.T) {
	tests := []struct {
		name      string
		sum       int
		count     int
		wantAvg   *float64
		wantLabel string
	}{
		{"no ratings", 0, 0, nil, models.NoRatingsLabel},
		{"four and five", 9, 2, ptrFloat(4.5), "4.5"},
		{"whole number", 10, 2, ptrFloat(5), "5"},
		{"rounds to two places", 11, 3, ptrFloat(3.67), "3.67"},
		{"rounds down below half", 4, 3, ptrFloat(1.33), "1.33"},
		{"tie goes to even down", 9, 8, ptrFloat(1.12), "1.12"},
		{"tie goes to even up", 11, 8, ptrFloat(1.38), "1.38"},
		{"tie below a hundredth", 201, 200, ptrFloat(1), "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					if !strings.Contains(sql, "SUM(score)") {
						t.Fatalf("unexpected sql: %q", sql)
					}
					return rowFromValues(tt.sum, tt.count)
				},
			}
			summary, err := NewRatingService(db).AverageRating(context.Background(), uuid.New())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if summary.Label != tt.wantLabel {
				t.Fatalf("expected label %q, got %q", tt.wantLabel, summary.Label)
			}
			switch {
			case tt.wantAvg == nil && summary.Average != nil:
				t.Fatalf("expected no average, got %v", *summary.Average)
			case tt.wantAvg != nil && (summary.Average == nil || *summary.Average != *tt.wantAvg):
				t.Fatalf("expected %v, got %v", *tt.wantAvg, summary.Average)
			}
		})
	}
}

func TestRatingService_Submit_CheckViolationIsInvalidScore(t *testing.T) {
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case isUserLock(sql):
				return rowFromValues(args[0])
			case strings.Contains(sql, "FROM friendships"):
				return rowFromValues(true)
			case strings.Contains(sql, "INSERT INTO ratings"):
				return errRow(&pgconn.PgError{Code: pgCheckViolation, ConstraintName: "ratings_score_check"})
			}
			t.Fatalf("unexpected sql: %q", sql)
			return nil
		},
	}
	svc := NewRatingService(&fakeDB{BeginFunc: beginReturning(tx)})

	if _, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), 5, ""); !errors.Is(err, ErrInvalidRatingScore) {
		t.Fatalf("expected ErrInvalidRatingScore, got %v", err)
	}
	if tx.committed {
		t.Fatal("did not expect commit")
	}
}

func TestRatingService_ListReviews(t *testing.T) {
	now := time.Now()
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if !strings.Contains(sql, "JOIN users") {
				t.Fatalf("expected rater names to be joined: %q", sql)
			}
			return rowsOf(
				[]any{uuid.New(), "carol", 5, "lovely", now},
				[]any{uuid.New(), "dave", 2, "", now},
			), nil
		},
	}

	reviews, err := NewRatingService(db).ListReviews(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reviews) != 2 || reviews[0].RaterUsername != "carol" || reviews[1].Score != 2 {
		t.Fatalf("unexpected reviews: %+v", reviews)
	}
}

func TestRatingService_CanRate_Self(t *testing.T) {
	id := uuid.New()
	ok, err := NewRatingService(&fakeDB{}).CanRate(context.Background(), id, id)
	if err != nil || ok {
		t.Fatalf("expected self rating to be ineligible, got %v %v", ok, err)
	}
}

func ptrFloat(v float64) *float64 {
	return &v
}
