package ordersdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marquee/internal/orders/txn"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

// mapError converts driver errors into the domain taxonomy. what names the
// record for the message.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", txn.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s (%s)", txn.ErrAlreadyInUse, what, pgErr.ConstraintName)
	}
	return err
}

// requireAffected turns a conditional write that matched nothing into
// ErrNotFound.
func requireAffected(res sql.Result, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", txn.ErrNotFound, what)
	}
	return nil
}

// jsonValue marshals v for a JSONB column. Nil pointers become SQL NULL.
func jsonValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

func decodeJSON(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
