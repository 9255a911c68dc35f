package postgres

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// notFound maps a missing row to the given domain error.
func notFound(err, kind error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return kind
	}
	return err
}

// validID reports whether id can be compared against a uuid column without
// a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
