package resource

import (
	"context"
)

// Record is a persisted row with a store-assigned id.
type Record interface {
	GetID() int64
}

// SoftDeletable records keep their row on delete and are hidden from lists unless trashed rows are requested.
type SoftDeletable interface {
	Trashed() bool
}

// Attachable records reference one stored file.
type Attachable interface {
	AttachmentPath() string
	SetAttachmentPath(path string)
}

// Repository is the persistence contract every resource is served through.
// Get returns a *core.NotFoundError for missing rows (and for trashed rows unless withTrashed).
// Create and Update return a *core.ConflictError on unique violations.
type Repository[T Record] interface {
	// List returns one page of live rows (all rows if q.WithTrashed) and the total match count.
	List(ctx context.Context, q Query) ([]T, int, error)
	Get(ctx context.Context, id int64, withTrashed bool) (T, error)
	Exists(ctx context.Context, column string, value interface{}, withTrashed bool) (bool, error)
	// FindBy returns every live row where column equals value, in list order.
	FindBy(ctx context.Context, column string, value interface{}) ([]T, error)
	Create(ctx context.Context, rec *T) error
	Update(ctx context.Context, rec *T) error
	// UpdateWhen is Update guarded by the stored row still holding expected in column.
	// A row that has moved on is reported as a *core.ConflictError.
	UpdateWhen(ctx context.Context, rec *T, column string, expected interface{}) error
	// Upsert inserts rec or updates the row matching it on the conflict columns.
	Upsert(ctx context.Context, rec *T, conflict ...string) error
	// Delete soft-deletes or removes the row, depending on the table.
	Delete(ctx context.Context, id int64) error
}

// Links replaces the many-to-many links of one owner row wholesale.
type Links interface {
	Set(ctx context.Context, ownerID int64, targetIDs []int64) error
	Get(ctx context.Context, ownerID int64) ([]int64, error)
}
