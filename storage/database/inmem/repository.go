package inmemdb

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

type Repository[T resource.Record] struct {
	db    *DB
	table *table
}

var _ resource.Repository[resource.Record] = (*Repository[resource.Record])(nil) // interface compliance check

func NewRepository[T resource.Record](db *DB, spec resource.Table) *Repository[T] {
	return &Repository[T]{db: db, table: db.register(spec)}
}

func (repo *Repository[T]) spec() resource.Table { return repo.table.spec }

// rows returns a snapshot of the table in list order. Caller holds the read lock.
func (repo *Repository[T]) rows(withTrashed bool) []T {
	out := make([]T, 0, len(repo.table.rows))
	for _, r := range repo.table.rows {
		rec := r.(T)
		if repo.spec().SoftDelete && !withTrashed && repo.db.trashed(reflect.ValueOf(rec)) {
			continue
		}
		out = append(out, rec)
	}

	oldestFirst := repo.spec().OldestFirst
	sort.Slice(out, func(i, j int) bool {
		ti := repo.createdAt(out[i])
		tj := repo.createdAt(out[j])
		if !ti.Equal(tj) {
			if oldestFirst {
				return ti.Before(tj)
			}
			return ti.After(tj)
		}
		if oldestFirst {
			return out[i].GetID() < out[j].GetID()
		}
		return out[i].GetID() > out[j].GetID()
	})
	return out
}

func (repo *Repository[T]) createdAt(rec T) time.Time {
	if t, ok := repo.db.value(reflect.ValueOf(rec), resource.ColCreatedAt).(time.Time); ok {
		return t
	}
	return time.Time{}
}

func (repo *Repository[T]) matches(rec T, q resource.Query) bool {
	v := reflect.ValueOf(rec)
	spec := repo.spec()

	if q.Scope != nil && spec.ScopeColumn != "" {
		if repo.db.value(v, spec.ScopeColumn) != *q.Scope {
			return false
		}
	}
	if q.Search == "" {
		return true
	}

	term := strings.ToLower(q.Search)
	for _, c := range spec.Search {
		if s, ok := repo.db.value(v, c).(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	for _, rel := range spec.Via {
		fk, ok := repo.db.value(v, rel.ForeignKey).(int64)
		if !ok {
			continue
		}
		related, ok := repo.db.tables[rel.Table]
		if !ok {
			continue
		}
		row, ok := related.rows[fk]
		if !ok {
			continue
		}
		if s, ok := repo.db.value(reflect.ValueOf(row), rel.Column).(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func (repo *Repository[T]) List(_ context.Context, q resource.Query) ([]T, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	matched := make([]T, 0)
	for _, rec := range repo.rows(q.WithTrashed) {
		if repo.matches(rec, q) {
			matched = append(matched, rec)
		}
	}

	total := len(matched)
	if !q.Valid() || q.Offset() >= total {
		return []T{}, total, nil
	}
	end := q.Offset() + q.PageSize
	if end > total {
		end = total
	}
	return matched[q.Offset():end], total, nil
}

func (repo *Repository[T]) Get(_ context.Context, id int64, withTrashed bool) (T, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var zero T
	row, ok := repo.table.rows[id]
	if !ok {
		return zero, core.NewNotFoundError(repo.spec().Name, id)
	}
	rec := row.(T)
	if repo.spec().SoftDelete && !withTrashed && repo.db.trashed(reflect.ValueOf(rec)) {
		return zero, core.NewNotFoundError(repo.spec().Name, id)
	}
	return rec, nil
}

func (repo *Repository[T]) Exists(_ context.Context, column string, value interface{}, withTrashed bool) (bool, error) {
	if !repo.spec().HasColumn(column) {
		return false, errors.Errorf("%s has no column %q", repo.spec().Name, column)
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	want := normalize(value)
	for _, rec := range repo.rows(withTrashed) {
		if repo.db.value(reflect.ValueOf(rec), column) == want {
			return true, nil
		}
	}
	return false, nil
}

func (repo *Repository[T]) FindBy(_ context.Context, column string, value interface{}) ([]T, error) {
	if !repo.spec().HasColumn(column) {
		return nil, errors.Errorf("%s has no column %q", repo.spec().Name, column)
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	want := normalize(value)
	out := make([]T, 0)
	for _, rec := range repo.rows(false) {
		if repo.db.value(reflect.ValueOf(rec), column) == want {
			out = append(out, rec)
		}
	}
	return out, nil
}

// conflicts returns the id of a row other than self sharing a unique column set with v, or 0.
func (repo *Repository[T]) conflicts(v reflect.Value, self int64, sets ...[]string) int64 {
	for _, set := range sets {
		for id, row := range repo.table.rows {
			if id == self {
				continue
			}
			rv := reflect.ValueOf(row)
			same := true
			for _, c := range set {
				if repo.db.value(rv, c) != repo.db.value(v, c) {
					same = false
					break
				}
			}
			if same {
				return id
			}
		}
	}
	return 0
}

func (repo *Repository[T]) Create(ctx context.Context, rec *T) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	v := reflect.ValueOf(rec).Elem()
	if repo.conflicts(v, 0, repo.spec().Unique...) != 0 {
		return core.NewConflictError("%s already exists", repo.spec().Name)
	}

	now := repo.db.now()
	repo.table.seq++
	repo.db.touchRow(ctx, repo.table, repo.table.seq)
	repo.setField(v, resource.ColID, repo.table.seq)
	repo.setField(v, resource.ColCreatedAt, now)
	repo.setField(v, resource.ColUpdatedAt, now)
	repo.table.rows[repo.table.seq] = *rec
	return nil
}

func (repo *Repository[T]) Update(ctx context.Context, rec *T) error {
	return repo.update(ctx, rec, "", nil)
}

func (repo *Repository[T]) UpdateWhen(ctx context.Context, rec *T, column string, expected interface{}) error {
	if !repo.spec().HasColumn(column) {
		return errors.Errorf("%s has no column %q", repo.spec().Name, column)
	}
	return repo.update(ctx, rec, column, expected)
}

// update writes rec over its stored row; a non-empty column must still hold expected.
func (repo *Repository[T]) update(ctx context.Context, rec *T, column string, expected interface{}) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	id := (*rec).GetID()
	old, ok := repo.table.rows[id]
	if !ok || (repo.spec().SoftDelete && repo.db.trashed(reflect.ValueOf(old))) {
		return core.NewNotFoundError(repo.spec().Name, id)
	}
	if column != "" && repo.db.value(reflect.ValueOf(old), column) != normalize(expected) {
		return core.NewConflictError("%s %d was changed meanwhile", repo.spec().Name, id)
	}

	v := reflect.ValueOf(rec).Elem()
	if repo.conflicts(v, id, repo.spec().Unique...) != 0 {
		return core.NewConflictError("%s already exists", repo.spec().Name)
	}
	repo.db.touchRow(ctx, repo.table, id)
	repo.setField(v, resource.ColCreatedAt, repo.db.value(reflect.ValueOf(old), resource.ColCreatedAt))
	repo.setField(v, resource.ColUpdatedAt, repo.db.now())
	repo.table.rows[id] = *rec
	return nil
}

func (repo *Repository[T]) Upsert(ctx context.Context, rec *T, conflict ...string) error {
	repo.db.mu.Lock()
	v := reflect.ValueOf(rec).Elem()
	existing := repo.conflicts(v, 0, conflict)
	repo.db.mu.Unlock()

	if existing == 0 {
		return repo.Create(ctx, rec)
	}
	repo.setField(v, resource.ColID, existing)
	return repo.Update(ctx, rec)
}

func (repo *Repository[T]) Delete(ctx context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.table.rows[id]
	if !ok {
		return nil
	}
	repo.db.touchRow(ctx, repo.table, id)
	if !repo.spec().SoftDelete {
		delete(repo.table.rows, id)
		return nil
	}

	rec := row.(T)
	v := reflect.ValueOf(&rec).Elem()
	if repo.db.trashed(v) {
		return nil
	}
	now := repo.db.now()
	repo.setField(v, resource.ColDeletedAt, now)
	repo.setField(v, resource.ColUpdatedAt, now)
	repo.table.rows[id] = rec
	return nil
}

func (repo *Repository[T]) setField(v reflect.Value, col string, val interface{}) {
	fld, ok := repo.db.field(v, col)
	if !ok || !fld.CanSet() || val == nil {
		return
	}
	rv := reflect.ValueOf(val)
	switch {
	case rv.Type().AssignableTo(fld.Type()):
		fld.Set(rv)
	case rv.Type().ConvertibleTo(fld.Type()):
		fld.Set(rv.Convert(fld.Type()))
	case fld.Type() == reflect.TypeOf(null.Time{}):
		if t, ok := val.(time.Time); ok {
			fld.Set(reflect.ValueOf(null.TimeFrom(t)))
		}
	}
}
