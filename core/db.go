package core

import (
	"context"
)

// TxManager runs a unit of work inside a single store transaction.
// The transaction travels in ctx; repositories pick it up from there.
type TxManager interface {
	// InTx commits when fn returns nil and rolls back otherwise. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
