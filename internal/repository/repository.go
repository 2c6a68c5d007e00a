// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrCodeNotFound        = errors.New("promotional code not found")
	ErrDuplicateCode       = errors.New("code already in use")
	ErrDuplicateEmail      = errors.New("email already in use")
	ErrDuplicateRedemption = errors.New("code already redeemed by this user")
)

// Querier is the subset of pgx operations shared by *pgxpool.Pool and
// pgx.Tx. Repository methods that must run inside the redemption
// transaction accept it explicitly.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, optionally on the named constraint.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsRetryable reports whether err is transient write contention
// (serialization failure or deadlock) that a caller may retry a bounded
// number of times.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
