// Package postgres implements core.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"billing-engine/internal/core"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// repo implements core.Repository on top of a pool or an open transaction.
type repo struct {
	q querier
}

// Store is a core.Store backed by a pgx pool. Outside InTx every call runs in
// its own implicit transaction.
type Store struct {
	repo
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{repo: repo{q: pool}, pool: pool}
}

func (s *Store) InTx(ctx context.Context, fn func(tx core.Repository) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&repo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Constraint names from the schema mapped to caller-facing messages.
var constraintMessages = map[string]string{
	"users_username_key":            "username is already taken",
	"estimates_public_token_key":    "public token already in use",
	"uq_estimates_sale":             "sale is already linked to an estimate",
	"sale_items_sale_id_fkey":       "sale still has line items",
	"payments_sale_id_fkey":         "sale still has payments",
	"sales_balance_amount_check":    "balance must not be negative",
	"payments_amount_check":         "payment amount must be greater than zero",
	"sale_items_quantity_check":     "quantity must be at least 1",
	"estimate_items_quantity_check": "quantity must be at least 1",
}

func constraintMessage(pgErr *pgconn.PgError) string {
	if msg, ok := constraintMessages[pgErr.ConstraintName]; ok {
		return msg
	}
	return pgErr.Message
}

// translate maps driver errors onto core error kinds. what names the row for
// a NotFound message.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NotFoundf("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return core.Conflictf(core.CodeDuplicate, "%s", constraintMessage(pgErr))
		case "23503": // foreign_key_violation
			return core.Conflictf(core.CodeInvalidState, "%s", constraintMessage(pgErr))
		case "23514": // check_violation
			return core.Validationf("%s", constraintMessage(pgErr))
		case "22003": // numeric_value_out_of_range
			return core.Validationf("value out of range: %s", pgErr.Message)
		}
	}
	return err
}

// requireOwned checks that id exists in table for orgID. Foreign keys alone
// would accept a row owned by another tenant.
func (r *repo) requireOwned(ctx context.Context, table string, orgID, id int) error {
	var ok bool
	err := r.q.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1 AND organization_id = $2)", table),
		id, orgID,
	).Scan(&ok)
	if err != nil {
		return fmt.Errorf("failed to check %s %d: %w", table, id, err)
	}
	if !ok {
		return core.NotFoundf("%s %d not found", singular[table], id)
	}
	return nil
}

var singular = map[string]string{
	"customers": "customer",
	"products":  "product",
	"sales":     "sale",
	"estimates": "estimate",
}
