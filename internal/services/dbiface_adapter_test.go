package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubPgxRow struct {
	values []any
	err    error
}

func (s stubPgxRow) Scan(dest ...any) error {
	if s.err != nil {
		return s.err
	}
	return assignRow(dest, s.values)
}

// stubPgxRows implements pgx.Rows over in-memory values.
type stubPgxRows struct {
	fakeRows
}

func (s *stubPgxRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT 0") }
func (s *stubPgxRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (s *stubPgxRows) Values() ([]any, error)                       { return nil, errors.New("not implemented") }
func (s *stubPgxRows) RawValues() [][]byte                          { return nil }
func (s *stubPgxRows) Conn() *pgx.Conn                              { return nil }

type stubPgxTx struct {
	tag        string
	committed  bool
	rolledBack bool
}

func (s *stubPgxTx) Begin(ctx context.Context) (pgx.Tx, error) { return s, nil }
func (s *stubPgxTx) Commit(ctx context.Context) error {
	s.committed = true
	return nil
}
func (s *stubPgxTx) Rollback(ctx context.Context) error {
	s.rolledBack = true
	return nil
}
func (s *stubPgxTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (s *stubPgxTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (s *stubPgxTx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (s *stubPgxTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (s *stubPgxTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(s.tag), nil
}
func (s *stubPgxTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return &stubPgxRows{fakeRows{rows: [][]any{{"tx"}}}}, nil
}
func (s *stubPgxTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return stubPgxRow{values: []any{"tx-row"}}
}
func (s *stubPgxTx) Conn() *pgx.Conn { return nil }

type stubPgxPool struct {
	queryErr error
	beginErr error
	tx       *stubPgxTx
}

func (s *stubPgxPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 3"), nil
}
func (s *stubPgxPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubPgxRows{fakeRows{rows: [][]any{{"pool"}}}}, nil
}
func (s *stubPgxPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return stubPgxRow{values: []any{"pool-row"}}
}
func (s *stubPgxPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.tx, nil
}

func TestPoolAdapter_PassesThroughPool(t *testing.T) {
	ctx := context.Background()
	adapter := newPoolAdapter(&stubPgxPool{})

	tag, err := adapter.Exec(ctx, "INSERT")
	if err != nil || tag.RowsAffected() != 3 {
		t.Fatalf("unexpected exec result %v %v", tag, err)
	}

	rows, err := adapter.Query(ctx, "SELECT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rows.Close()
	var value string
	if !rows.Next() || rows.Scan(&value) != nil || value != "pool" {
		t.Fatalf("unexpected rows value %q", value)
	}

	if err := adapter.QueryRow(ctx, "SELECT").Scan(&value); err != nil || value != "pool-row" {
		t.Fatalf("unexpected row value %q (%v)", value, err)
	}
}

func TestPoolAdapter_QueryErrorReturnsNilRows(t *testing.T) {
	adapter := newPoolAdapter(&stubPgxPool{queryErr: errors.New("down")})

	rows, err := adapter.Query(context.Background(), "SELECT")
	if err == nil {
		t.Fatal("expected error")
	}
	if rows != nil {
		t.Fatal("expected nil rows on error")
	}
}

func TestPoolAdapter_BeginWrapsTx(t *testing.T) {
	ctx := context.Background()
	pgxTx := &stubPgxTx{tag: "DELETE 2"}
	adapter := newPoolAdapter(&stubPgxPool{tx: pgxTx})

	tx, err := adapter.Begin(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tag, err := tx.Exec(ctx, "DELETE")
	if err != nil || tag.RowsAffected() != 2 {
		t.Fatalf("unexpected tx exec result %v %v", tag, err)
	}
	var value string
	if err := tx.QueryRow(ctx, "SELECT").Scan(&value); err != nil || value != "tx-row" {
		t.Fatalf("unexpected tx row %q (%v)", value, err)
	}
	if err := tx.Commit(ctx); err != nil || !pgxTx.committed {
		t.Fatal("expected commit to reach pgx tx")
	}
	if err := tx.Rollback(ctx); err != nil || !pgxTx.rolledBack {
		t.Fatal("expected rollback to reach pgx tx")
	}
}

func TestPoolAdapter_BeginError(t *testing.T) {
	adapter := newPoolAdapter(&stubPgxPool{beginErr: errors.New("no conn")})
	if _, err := adapter.Begin(context.Background()); err == nil {
		t.Fatal("expected begin error")
	}
}

func TestRunInTx_CommitsOnSuccess(t *testing.T) {
	var committed, rolledBack bool
	db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) {
		return &fakeTx{
			CommitFunc:   func(ctx context.Context) error { committed = true; return nil },
			RollbackFunc: func(ctx context.Context) error { rolledBack = true; return nil },
		}, nil
	}}

	if err := runInTx(context.Background(), db, func(tx Tx) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !committed {
		t.Fatal("expected commit")
	}
	// The deferred rollback still runs but is a no-op on a committed pgx tx.
	if !rolledBack {
		t.Fatal("expected deferred rollback call")
	}
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	var committed bool
	db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) {
		return &fakeTx{CommitFunc: func(ctx context.Context) error { committed = true; return nil }}, nil
	}}
	sentinel := errors.New("stop")

	err := runInTx(context.Background(), db, func(tx Tx) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if committed {
		t.Fatal("did not expect commit")
	}
}

func TestRunInTx_BeginAndCommitErrors(t *testing.T) {
	db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) { return nil, errors.New("no conn") }}
	if err := runInTx(context.Background(), db, func(tx Tx) error { return nil }); err == nil {
		t.Fatal("expected begin error")
	}

	db = &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) {
		return &fakeTx{CommitFunc: func(ctx context.Context) error { return errors.New("serialization") }}, nil
	}}
	if err := runInTx(context.Background(), db, func(tx Tx) error { return nil }); err == nil {
		t.Fatal("expected commit error")
	}
}

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation})
	fk := &pgconn.PgError{Code: pgForeignKeyViolation}
	check := &pgconn.PgError{Code: pgCheckViolation}

	if !isUniqueViolation(unique) || isUniqueViolation(fk) {
		t.Fatal("unique violation misclassified")
	}
	if !isForeignKeyViolation(fk) || isForeignKeyViolation(check) {
		t.Fatal("foreign key violation misclassified")
	}
	if !isCheckViolation(check) || isCheckViolation(errors.New("plain")) {
		t.Fatal("check violation misclassified")
	}
}
