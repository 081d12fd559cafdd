package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/sdoims/core/resource"
)

type Links struct {
	db    *DB
	pivot string
}

var _ resource.Links = (*Links)(nil) // interface compliance check

// NewLinks keeps the same signature as the SQL implementation; the column names are unused in memory.
func NewLinks(db *DB, pivot, _, _ string) *Links {
	return &Links{db: db, pivot: pivot}
}

func (l *Links) Set(ctx context.Context, ownerID int64, targetIDs []int64) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()

	l.db.touchLinks(ctx, l.pivot, ownerID)
	owners, ok := l.db.links[l.pivot]
	if !ok {
		owners = make(map[int64][]int64)
		l.db.links[l.pivot] = owners
	}

	seen := make(map[int64]bool, len(targetIDs))
	ids := make([]int64, 0, len(targetIDs))
	for _, id := range targetIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	owners[ownerID] = ids
	return nil
}

func (l *Links) Get(_ context.Context, ownerID int64) ([]int64, error) {
	l.db.mu.RLock()
	defer l.db.mu.RUnlock()

	ids := append([]int64{}, l.db.links[l.pivot][ownerID]...)
	return ids, nil
}
