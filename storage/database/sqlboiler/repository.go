package boiledrepos

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

// Repository serves one table. T must carry `db` tags matching the table's columns.
type Repository[T resource.Record] struct {
	store *Store
	table resource.Table
}

var _ resource.Repository[resource.Record] = (*Repository[resource.Record])(nil) // interface compliance check

func NewRepository[T resource.Record](store *Store, table resource.Table) *Repository[T] {
	store.register(table)
	return &Repository[T]{store: store, table: table}
}

func (repo *Repository[T]) col(name string) string {
	return quote(repo.table.Name) + "." + quote(name)
}

func (repo *Repository[T]) liveMod() qm.QueryMod {
	return qm.Where(repo.col(resource.ColDeletedAt) + " IS NULL")
}

func (repo *Repository[T]) orderMod() qm.QueryMod {
	asc := repo.table.OldestFirst
	return qm.OrderBy(
		core.DBOrdering{Field: repo.col(resource.ColCreatedAt), Ascending: asc}.String() + ", " +
			core.DBOrdering{Field: repo.col(resource.ColID), Ascending: asc}.String())
}

func (repo *Repository[T]) selectMods() []qm.QueryMod {
	cols := repo.table.AllColumns()
	qualified := make([]string, 0, len(cols))
	for _, c := range cols {
		qualified = append(qualified, repo.table.Name+"."+c)
	}
	return []qm.QueryMod{qm.Select(qualified...), qm.From(repo.table.Name)}
}

// filterMods applies scope, search and trashed filters.
// Related columns are searched through EXISTS sub-selects rather than joins.
func (repo *Repository[T]) filterMods(q resource.Query) []qm.QueryMod {
	var mods []qm.QueryMod

	if repo.table.SoftDelete && !q.WithTrashed {
		mods = append(mods, repo.liveMod())
	}
	if q.Scope != nil && repo.table.ScopeColumn != "" {
		mods = append(mods, qm.Where(repo.col(repo.table.ScopeColumn)+" = ?", *q.Scope))
	}
	if q.Search != "" {
		val := "%" + escapeLike(q.Search) + "%"
		clauses := make([]string, 0, len(repo.table.Search)+len(repo.table.Via))
		args := make([]interface{}, 0, cap(clauses))
		for _, c := range repo.table.Search {
			clauses = append(clauses, repo.col(c)+" ILIKE ?")
			args = append(args, val)
		}
		for _, rel := range repo.table.Via {
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM %s r WHERE r.%s = %s AND r.%s ILIKE ?)",
				quote(rel.Table), quote(resource.ColID), repo.col(rel.ForeignKey), quote(rel.Column)))
			args = append(args, val)
		}
		if len(clauses) > 0 {
			mods = append(mods, qm.Expr(qm.Where(strings.Join(clauses, " OR "), args...)))
		}
	}
	return mods
}

func (repo *Repository[T]) List(ctx context.Context, q resource.Query) ([]T, int, error) {
	exec := repo.store.getExec(ctx)
	filters := repo.filterMods(q)

	cq := newQuery(append([]qm.QueryMod{qm.Select("COUNT(*)"), qm.From(repo.table.Name)}, filters...)...)
	query, args := queries.BuildQuery(cq)
	var total int
	if err := exec.QueryRowxContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrapf(err, "counting %s", repo.table.Name)
	}
	if !q.Valid() || q.Offset() >= total {
		return []T{}, total, nil
	}

	mods := append(repo.selectMods(), filters...)
	mods = append(mods, repo.orderMod(), qm.Limit(q.PageSize), qm.Offset(q.Offset()))
	query, args = queries.BuildQuery(newQuery(mods...))

	records := make([]T, 0, q.PageSize)
	if err := selectContext(ctx, repo.store, &records, query, args...); err != nil {
		return nil, 0, errors.Wrapf(err, "listing %s", repo.table.Name)
	}
	return records, total, nil
}

func (repo *Repository[T]) Get(ctx context.Context, id int64, withTrashed bool) (T, error) {
	mods := append(repo.selectMods(), qm.Where(repo.col(resource.ColID)+" = ?", id))
	if repo.table.SoftDelete && !withTrashed {
		mods = append(mods, repo.liveMod())
	}
	query, args := queries.BuildQuery(newQuery(mods...))

	var rec T
	if err := repo.store.getExec(ctx).QueryRowxContext(ctx, query, args...).StructScan(&rec); err != nil {
		return rec, trapErr(err, repo.table.Name, id, "finding "+repo.table.Name)
	}
	return rec, nil
}

func (repo *Repository[T]) Exists(ctx context.Context, column string, value interface{}, withTrashed bool) (bool, error) {
	if !repo.table.HasColumn(column) {
		return false, errors.Errorf("%s has no column %q", repo.table.Name, column)
	}
	mods := []qm.QueryMod{qm.Where(repo.col(column)+" = ?", value)}
	if repo.table.SoftDelete && !withTrashed {
		mods = append(mods, repo.liveMod())
	}
	return repo.store.exists(ctx, repo.table.Name, mods...)
}

func (repo *Repository[T]) FindBy(ctx context.Context, column string, value interface{}) ([]T, error) {
	if !repo.table.HasColumn(column) {
		return nil, errors.Errorf("%s has no column %q", repo.table.Name, column)
	}
	mods := append(repo.selectMods(), qm.Where(repo.col(column)+" = ?", value))
	if repo.table.SoftDelete {
		mods = append(mods, repo.liveMod())
	}
	mods = append(mods, repo.orderMod())
	query, args := queries.BuildQuery(newQuery(mods...))

	records := make([]T, 0)
	if err := selectContext(ctx, repo.store, &records, query, args...); err != nil {
		return nil, errors.Wrapf(err, "finding %s by %s", repo.table.Name, column)
	}
	return records, nil
}

func (repo *Repository[T]) Create(ctx context.Context, rec *T) error {
	v := reflect.ValueOf(rec).Elem()
	now := time.Now().UTC()
	repo.setField(v, resource.ColCreatedAt, now)
	repo.setField(v, resource.ColUpdatedAt, now)

	cols := append(append([]string{}, repo.table.Columns...), resource.ColCreatedAt, resource.ColUpdatedAt)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quote(repo.table.Name),
		strings.Join(strmangle.IdentQuoteSlice(dialect.LQ, dialect.RQ, cols), ", "),
		strmangle.Placeholders(dialect.UseIndexPlaceholders, len(cols), 1, 1),
		quote(resource.ColID))

	var id int64
	if err := repo.store.getExec(ctx).QueryRowxContext(ctx, query, repo.values(v, cols)...).Scan(&id); err != nil {
		return trapErr(err, repo.table.Name, nil, "inserting "+repo.table.Name)
	}
	repo.setField(v, resource.ColID, id)
	return nil
}

func (repo *Repository[T]) Update(ctx context.Context, rec *T) error {
	query, args := repo.updateQuery(rec, "", nil)
	id := (*rec).GetID()
	res, err := repo.store.getExec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return trapErr(err, repo.table.Name, id, "updating "+repo.table.Name)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError(repo.table.Name, id)
	}
	return nil
}

func (repo *Repository[T]) UpdateWhen(ctx context.Context, rec *T, column string, expected interface{}) error {
	if !repo.table.HasColumn(column) {
		return errors.Errorf("%s has no column %q", repo.table.Name, column)
	}
	query, args := repo.updateQuery(rec, column, expected)
	id := (*rec).GetID()
	res, err := repo.store.getExec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return trapErr(err, repo.table.Name, id, "updating "+repo.table.Name)
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}

	live, err := repo.Exists(ctx, resource.ColID, id, false)
	if err != nil {
		return err
	}
	if !live {
		return core.NewNotFoundError(repo.table.Name, id)
	}
	return core.NewConflictError("%s %d was changed meanwhile", repo.table.Name, id)
}

// updateQuery builds the UPDATE of every writable column of rec, guarded by column = expected when column is set.
func (repo *Repository[T]) updateQuery(rec *T, column string, expected interface{}) (string, []interface{}) {
	v := reflect.ValueOf(rec).Elem()
	repo.setField(v, resource.ColUpdatedAt, time.Now().UTC())

	cols := append(append([]string{}, repo.table.Columns...), resource.ColUpdatedAt)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quote(repo.table.Name),
		strmangle.SetParamNames(string(dialect.LQ), string(dialect.RQ), 1, cols),
		strmangle.WhereClause(string(dialect.LQ), string(dialect.RQ), len(cols)+1, []string{resource.ColID}))
	args := append(repo.values(v, cols), (*rec).GetID())
	if repo.table.SoftDelete {
		query += " AND " + quote(resource.ColDeletedAt) + " IS NULL"
	}
	if column != "" {
		query += fmt.Sprintf(" AND %s = $%d", quote(column), len(args)+1)
		args = append(args, expected)
	}
	return query, args
}

func (repo *Repository[T]) Upsert(ctx context.Context, rec *T, conflict ...string) error {
	query, args := repo.upsertQuery(rec, conflict)

	var (
		id        int64
		createdAt time.Time
	)
	if err := repo.store.getExec(ctx).QueryRowxContext(ctx, query, args...).Scan(&id, &createdAt); err != nil {
		return trapErr(err, repo.table.Name, nil, "upserting "+repo.table.Name)
	}
	v := reflect.ValueOf(rec).Elem()
	repo.setField(v, resource.ColID, id)
	repo.setField(v, resource.ColCreatedAt, createdAt)
	return nil
}

// upsertQuery builds the INSERT of rec that overwrites the row already holding its conflict columns.
// The stored created_at survives the update and is returned with the id.
func (repo *Repository[T]) upsertQuery(rec *T, conflict []string) (string, []interface{}) {
	v := reflect.ValueOf(rec).Elem()
	now := time.Now().UTC()
	repo.setField(v, resource.ColCreatedAt, now)
	repo.setField(v, resource.ColUpdatedAt, now)

	cols := append(append([]string{}, repo.table.Columns...), resource.ColCreatedAt, resource.ColUpdatedAt)
	updates := make([]string, 0, len(cols))
	for _, c := range append(strmangle.SetComplement(repo.table.Columns, conflict), resource.ColUpdatedAt) {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quote(c), quote(c)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s, %s",
		quote(repo.table.Name),
		strings.Join(strmangle.IdentQuoteSlice(dialect.LQ, dialect.RQ, cols), ", "),
		strmangle.Placeholders(dialect.UseIndexPlaceholders, len(cols), 1, 1),
		strings.Join(strmangle.IdentQuoteSlice(dialect.LQ, dialect.RQ, conflict), ", "),
		strings.Join(updates, ", "),
		quote(resource.ColID), quote(resource.ColCreatedAt))
	return query, repo.values(v, cols)
}

func (repo *Repository[T]) Delete(ctx context.Context, id int64) error {
	var (
		query string
		args  []interface{}
	)
	if repo.table.SoftDelete {
		now := time.Now().UTC()
		query = fmt.Sprintf("UPDATE %s SET %s = $1, %s = $1 WHERE %s = $2 AND %s IS NULL",
			quote(repo.table.Name), quote(resource.ColDeletedAt), quote(resource.ColUpdatedAt),
			quote(resource.ColID), quote(resource.ColDeletedAt))
		args = []interface{}{null.TimeFrom(now), id}
	} else {
		query = fmt.Sprintf("DELETE FROM %s WHERE %s = $1", quote(repo.table.Name), quote(resource.ColID))
		args = []interface{}{id}
	}
	if _, err := repo.store.getExec(ctx).ExecContext(ctx, query, args...); err != nil {
		return trapErr(err, repo.table.Name, id, fmt.Sprintf("deleting %s %d", repo.table.Name, id))
	}
	return nil
}

func (repo *Repository[T]) values(v reflect.Value, cols []string) []interface{} {
	mapper := repo.store.db.Mapper
	vals := make([]interface{}, 0, len(cols))
	for _, c := range cols {
		vals = append(vals, mapper.FieldByName(v, c).Interface())
	}
	return vals
}

func (repo *Repository[T]) setField(v reflect.Value, col string, val interface{}) {
	fld := repo.store.db.Mapper.FieldByName(v, col)
	if !fld.IsValid() || !fld.CanSet() {
		return
	}
	rv := reflect.ValueOf(val)
	switch {
	case rv.Type().AssignableTo(fld.Type()):
		fld.Set(rv)
	case fld.Type() == reflect.TypeOf(null.Time{}):
		if t, ok := val.(time.Time); ok {
			fld.Set(reflect.ValueOf(null.TimeFrom(t)))
		}
	}
}

func selectContext(ctx context.Context, store *Store, dest interface{}, query string, args ...interface{}) error {
	rows, err := store.getExec(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	slice := reflect.ValueOf(dest).Elem()
	elemType := slice.Type().Elem()
	for rows.Next() {
		elem := reflect.New(elemType)
		if err = rows.StructScan(elem.Interface()); err != nil {
			return err
		}
		slice.Set(reflect.Append(slice, elem.Elem()))
	}
	return rows.Err()
}

// escapeLike escapes the LIKE wildcards so the search term matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
