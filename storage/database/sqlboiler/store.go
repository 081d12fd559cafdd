// Package boiledrepos implements the resource repositories on PostgreSQL.
// Queries are composed with sqlboiler query mods and scanned with sqlx.
package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/friendsofgo/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var dialect = drivers.Dialect{
	LQ:                   '"',
	RQ:                   '"',
	UseIndexPlaceholders: true,
	UseLastInsertID:      false,
	UseSchema:            false,
	UseDefaultKeyword:    true,
}

type txKey struct{}

// Store owns the connection pool and the tables registered by the repositories.
type Store struct {
	db *sqlx.DB

	mu     sync.RWMutex
	tables map[string]resource.Table
}

var _ core.TxManager = (*Store)(nil) // interface compliance check

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     sqlx.NewDb(db, "postgres"),
		tables: make(map[string]resource.Table),
	}
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) register(t resource.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Name] = t
}

func (s *Store) table(name string) (resource.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	return t, ok
}

// getExec returns the transaction carried by ctx, if any, or the pool.
func (s *Store) getExec(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// ExistsByID reports whether a live row with id exists in a registered table.
func (s *Store) ExistsByID(ctx context.Context, table string, id int64) (bool, error) {
	t, ok := s.table(table)
	if !ok {
		return false, errors.Errorf("unknown table %q", table)
	}
	mods := []qm.QueryMod{qm.Where(quote(resource.ColID)+" = ?", id)}
	if t.SoftDelete {
		mods = append(mods, qm.Where(quote(resource.ColDeletedAt)+" IS NULL"))
	}
	return s.exists(ctx, t.Name, mods...)
}

func (s *Store) exists(ctx context.Context, table string, mods ...qm.QueryMod) (bool, error) {
	q := newQuery(append([]qm.QueryMod{qm.Select("1"), qm.From(table), qm.Limit(1)}, mods...)...)
	query, args := queries.BuildQuery(q)

	var one int
	err := s.getExec(ctx).QueryRowxContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "checking %s existence", table)
	}
	return true, nil
}

func newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return q
}

func quote(ident string) string {
	return fmt.Sprintf("%c%s%c", dialect.LQ, ident, dialect.RQ)
}

// trapErr maps "no rows" to a *core.NotFoundError, and unique and foreign key violations to a *core.ConflictError.
func trapErr(err error, resourceName string, id interface{}, msg string) error {
	if err == sql.ErrNoRows {
		return core.NewNotFoundError(resourceName, id)
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case uniqueViolation:
			return core.NewConflictError("%s already exists (%s)", resourceName, pqErr.Constraint)
		case foreignKeyViolation:
			return core.NewConflictError("%s is still referenced (%s)", resourceName, pqErr.Constraint)
		}
	}
	return errors.Wrap(err, msg)
}
