package district

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
)

type District struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	DivisionID int64     `db:"division_id" json:"division_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"` // UTC
	DeletedAt  null.Time `db:"deleted_at" json:"deleted_at"`
}

func (d District) GetID() int64  { return d.ID }
func (d District) Trashed() bool { return d.DeletedAt.Valid }

// NewDistrict contains information needed to create a new District.
type NewDistrict struct {
	Name       string `json:"name" validate:"required,notblank,max=255"`
	DivisionID int64  `json:"division_id" validate:"required,exists=divisions"`
}

func (nd *NewDistrict) Clean() { nd.Name = core.CleanString(nd.Name) }

// UpdateDistrict defines what information may be provided to modify an existing District.
type UpdateDistrict struct {
	Name       string `json:"name" validate:"max=255"`
	DivisionID int64  `json:"division_id" validate:"omitempty,exists=divisions"`
}

func (ud *UpdateDistrict) Clean() { ud.Name = core.CleanString(ud.Name) }
