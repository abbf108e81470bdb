package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// lockUsers takes row locks on the given users in byte order so that two
// transactions touching the same pair never wait on each other in a cycle.
// Duplicate IDs are locked once.
func lockUsers(ctx context.Context, q DBConn, ids ...uuid.UUID) error {
	ordered := slices.Clone(ids)
	slices.SortFunc(ordered, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	ordered = slices.Compact(ordered)

	for _, id := range ordered {
		var locked uuid.UUID
		err := q.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("locking user: %w", err)
		}
	}
	return nil
}
