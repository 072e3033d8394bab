package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/workinghours"
)

// Querier is the subset of pgx shared by the pool and an open transaction, so
// repository methods can run standalone or inside an atomic commit.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsExclusionConflict reports an exclusion-constraint violation (23P01), the
// database-level overlap guard on appointments.
func IsExclusionConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsSerializationFailure reports a serializable-transaction abort (40001);
// the losing commit of two concurrent bookings surfaces this way.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

// scanWorkingHours decodes a nullable JSONB working_hours column. NULL and
// malformed values both come back as nil so the layered resolver falls
// through to the next source.
func scanWorkingHours(raw []byte) workinghours.WorkingHours {
	if len(raw) == 0 {
		return nil
	}
	var wh workinghours.WorkingHours
	if err := json.Unmarshal(raw, &wh); err != nil {
		return nil
	}
	return wh
}
