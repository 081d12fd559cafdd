// Package inmemdb is an in-memory implementation of the resource repositories, used by tests and demo mode.
package inmemdb

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

type txKey struct{}

type table struct {
	spec resource.Table
	rows map[int64]interface{}
	seq  int64
}

// DB holds every registered table. Rows are stored by value, so callers never share memory with the store.
type DB struct {
	mu     sync.RWMutex
	tables map[string]*table
	links  map[string]map[int64][]int64 // pivot -> owner -> targets

	txMu   sync.Mutex
	mapper *reflectx.Mapper
	now    func() time.Time
}

var _ core.TxManager = (*DB)(nil) // interface compliance check

func NewDB() *DB {
	return &DB{
		tables: make(map[string]*table),
		links:  make(map[string]map[int64][]int64),
		mapper: reflectx.NewMapperFunc("db", strings.ToLower),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock stamping created_at and updated_at.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

func (db *DB) register(spec resource.Table) *table {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.tables[spec.Name]; ok {
		t.spec = spec
		return t
	}
	t := &table{spec: spec, rows: make(map[int64]interface{})}
	db.tables[spec.Name] = t
	return t
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, t := range db.tables {
		t.rows = make(map[int64]interface{})
		t.seq = 0
	}
	db.links = make(map[string]map[int64][]int64)
}

// txLog remembers the state of every row and link set a transaction touched, before its first write.
type txLog struct {
	rows  map[rowKey]rowState
	links map[linkKey]linkState
}

type (
	rowKey struct {
		table string
		id    int64
	}
	rowState struct {
		row     interface{}
		existed bool
	}
	linkKey struct {
		pivot string
		owner int64
	}
	linkState struct {
		ids     []int64
		existed bool
	}
)

func txFrom(ctx context.Context) *txLog {
	log, _ := ctx.Value(txKey{}).(*txLog)
	return log
}

// touchRow records the row's current state the first time a transaction writes it. Caller holds the write lock.
func (db *DB) touchRow(ctx context.Context, t *table, id int64) {
	log := txFrom(ctx)
	if log == nil {
		return
	}
	key := rowKey{table: t.spec.Name, id: id}
	if _, ok := log.rows[key]; ok {
		return
	}
	row, existed := t.rows[id]
	log.rows[key] = rowState{row: row, existed: existed}
}

// touchLinks is touchRow for the links of one owner.
func (db *DB) touchLinks(ctx context.Context, pivot string, owner int64) {
	log := txFrom(ctx)
	if log == nil {
		return
	}
	key := linkKey{pivot: pivot, owner: owner}
	if _, ok := log.links[key]; ok {
		return
	}
	ids, existed := db.links[pivot][owner]
	log.links[key] = linkState{ids: append([]int64(nil), ids...), existed: existed}
}

// InTx serialises transactions. If fn fails, the rows and links it wrote are put back;
// writes made outside the transaction meanwhile are kept. Sequences are not rewound.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	log := &txLog{rows: make(map[rowKey]rowState), links: make(map[linkKey]linkState)}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		db.rollback(log)
		return err
	}
	return nil
}

func (db *DB) rollback(log *txLog) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for key, st := range log.rows {
		t := db.tables[key.table]
		if st.existed {
			t.rows[key.id] = st.row
		} else {
			delete(t.rows, key.id)
		}
	}
	for key, st := range log.links {
		owners := db.links[key.pivot]
		switch {
		case st.existed:
			owners[key.owner] = st.ids
		case owners != nil:
			delete(owners, key.owner)
		}
	}
}

// ExistsByID reports whether a live row with id exists in table.
func (db *DB) ExistsByID(_ context.Context, tableName string, id int64) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[tableName]
	if !ok {
		return false, errors.Errorf("unknown table %q", tableName)
	}
	row, ok := t.rows[id]
	if !ok {
		return false, nil
	}
	return !t.spec.SoftDelete || !db.trashed(reflect.ValueOf(row)), nil
}

func (db *DB) field(v reflect.Value, col string) (reflect.Value, bool) {
	v = reflect.Indirect(v)
	fi, ok := db.mapper.TypeMap(v.Type()).Names[col]
	if !ok {
		return reflect.Value{}, false
	}
	return reflectx.FieldByIndexesReadOnly(v, fi.Index), true
}

func (db *DB) value(v reflect.Value, col string) interface{} {
	fld, ok := db.field(v, col)
	if !ok {
		return nil
	}
	return normalize(fld.Interface())
}

func (db *DB) trashed(v reflect.Value) bool {
	return db.value(v, resource.ColDeletedAt) != nil
}

// normalize unwraps nullable and pointer values so they compare with ==.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case *int64:
		if val == nil {
			return nil
		}
		return *val
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case null.Int64:
		if !val.Valid {
			return nil
		}
		return val.Int64
	case null.String:
		if !val.Valid {
			return nil
		}
		return val.String
	case null.Time:
		if !val.Valid {
			return nil
		}
		return val.Time
	case null.Bool:
		if !val.Valid {
			return nil
		}
		return val.Bool
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return val
	}
	return v
}
