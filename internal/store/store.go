package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"feedchain/internal/lifecycle"
	"feedchain/internal/utils"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// querier is what the repositories need from either the pool or a
// transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type collections struct {
	*FoodPostRepository
	*ClaimRepository
	*LifecycleEventRepository
}

func newCollections(db querier, lock bool) collections {
	return collections{
		FoodPostRepository:       &FoodPostRepository{db: db, lock: lock},
		ClaimRepository:          &ClaimRepository{db: db, lock: lock},
		LifecycleEventRepository: &LifecycleEventRepository{db: db},
	}
}

// Store is the Postgres backed lifecycle.Store.
type Store struct {
	pool *pgxpool.Pool
	collections
}

var _ lifecycle.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:        pool,
		collections: newCollections(pool, false),
	}
}

// Atomic runs fn in one transaction. Single record reads inside fn take a
// row lock that is held until the transaction ends.
func (s *Store) Atomic(ctx context.Context, fn func(tx lifecycle.Collections) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		c := newCollections(tx, true)
		return fn(&c)
	})
}

func upsert(table string, record any) (string, []any, error) {
	values := utils.StructToMap(record)

	return psql().
		Insert(table).
		SetMap(values).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + buildUpdateClause(values, "id", "created_at")).
		ToSql()
}

func selectByID(table string, columns []string, id string, lock bool) (string, []any, error) {
	q := psql().Select(columns...).From(table).
		Where(sq.Eq{"id": id}).
		Limit(1)
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	return q.ToSql()
}

// buildUpdateClause creates the SET clause for ON CONFLICT DO UPDATE,
// e.g. "quantity = EXCLUDED.quantity, status = EXCLUDED.status".
func buildUpdateClause(fields map[string]any, skip ...string) string {
	columns := make([]string, 0, len(fields))
fieldloop:
	for field := range fields {
		for _, s := range skip {
			if field == s {
				continue fieldloop
			}
		}
		columns = append(columns, field)
	}
	sort.Strings(columns)

	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		parts = append(parts, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	return strings.Join(parts, ", ")
}
