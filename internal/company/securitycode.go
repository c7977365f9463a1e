// Package company holds the minimal company surface the lifecycle engine
// consumes: verifying a signature security code against the company that owns
// it. Company administration itself lives in another service.
package company

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dErrors "wastetrack/pkg/domain-errors"
	"wastetrack/pkg/platform/tx"
)

// PostgresVerifier checks security codes against the companies table.
type PostgresVerifier struct {
	db *sql.DB
}

// NewPostgresVerifier constructs a database-backed verifier.
func NewPostgresVerifier(db *sql.DB) *PostgresVerifier {
	return &PostgresVerifier{db: db}
}

func (v *PostgresVerifier) Verify(ctx context.Context, companySiret string, code int) error {
	q := querier(ctx, v.db)
	var stored int
	err := q.QueryRowContext(ctx,
		`SELECT security_code FROM companies WHERE siret = $1`, companySiret).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dErrors.Newf(dErrors.CodeNotFound, "company %s is not registered", companySiret)
		}
		return fmt.Errorf("look up security code: %w", err)
	}
	if stored != code {
		return dErrors.New(dErrors.CodeForbidden, "the security code is invalid")
	}
	return nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func querier(ctx context.Context, db *sql.DB) rowQuerier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return db
}

// StaticVerifier is a map-backed verifier for tests and local development.
type StaticVerifier map[string]int

func (v StaticVerifier) Verify(_ context.Context, companySiret string, code int) error {
	stored, ok := v[companySiret]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "company %s is not registered", companySiret)
	}
	if stored != code {
		return dErrors.New(dErrors.CodeForbidden, "the security code is invalid")
	}
	return nil
}
