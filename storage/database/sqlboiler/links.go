package boiledrepos

import (
	"context"
	"fmt"

	"github.com/friendsofgo/errors"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/sdoims/core/resource"
)

// Links manages a pivot table joining two resources.
type Links struct {
	store     *Store
	pivot     string
	ownerCol  string
	targetCol string
}

var _ resource.Links = (*Links)(nil) // interface compliance check

func NewLinks(store *Store, pivot, ownerCol, targetCol string) *Links {
	return &Links{store: store, pivot: pivot, ownerCol: ownerCol, targetCol: targetCol}
}

// Set makes targetIDs the exact link set of ownerID.
func (l *Links) Set(ctx context.Context, ownerID int64, targetIDs []int64) error {
	return l.store.InTx(ctx, func(ctx context.Context) error {
		exec := l.store.getExec(ctx)

		var (
			query string
			args  []interface{}
			err   error
		)
		if len(targetIDs) == 0 {
			query = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(l.pivot), quote(l.ownerCol))
			args = []interface{}{ownerID}
		} else {
			query, args, err = sqlx.In(
				fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s NOT IN (?)", quote(l.pivot), quote(l.ownerCol), quote(l.targetCol)),
				ownerID, targetIDs)
			if err != nil {
				return errors.Wrap(err, "expanding link ids")
			}
		}
		if _, err = exec.ExecContext(ctx, exec.Rebind(query), args...); err != nil {
			return errors.Wrapf(err, "pruning %s", l.pivot)
		}

		insert := exec.Rebind(fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT DO NOTHING",
			quote(l.pivot), quote(l.ownerCol), quote(l.targetCol)))
		for _, id := range targetIDs {
			if _, err = exec.ExecContext(ctx, insert, ownerID, id); err != nil {
				return errors.Wrapf(err, "linking %s", l.pivot)
			}
		}
		return nil
	})
}

func (l *Links) Get(ctx context.Context, ownerID int64) ([]int64, error) {
	exec := l.store.getExec(ctx)
	query := exec.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY %s",
		quote(l.targetCol), quote(l.pivot), quote(l.ownerCol), quote(l.targetCol)))

	ids := make([]int64, 0)
	if err := sqlx.SelectContext(ctx, exec, &ids, query, ownerID); err != nil {
		return nil, errors.Wrapf(err, "reading %s", l.pivot)
	}
	return ids, nil
}
