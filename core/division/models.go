package division

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
)

type Division struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Region    string    `db:"region" json:"region"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
	DeletedAt null.Time `db:"deleted_at" json:"deleted_at"`
}

func (d Division) GetID() int64  { return d.ID }
func (d Division) Trashed() bool { return d.DeletedAt.Valid }

// NewDivision contains information needed to create a new Division.
type NewDivision struct {
	Name   string `json:"name" validate:"required,notblank,max=255"`
	Region string `json:"region" validate:"max=100"`
}

func (nd *NewDivision) Clean() {
	nd.Name = core.CleanString(nd.Name)
	nd.Region = core.CleanString(nd.Region)
}

// UpdateDivision defines what information may be provided to modify an existing Division.
// Empty fields keep their current value.
type UpdateDivision struct {
	Name   string  `json:"name" validate:"max=255"`
	Region *string `json:"region" validate:"omitempty,max=100"`
}

func (ud *UpdateDivision) Clean() {
	ud.Name = core.CleanString(ud.Name)
	if ud.Region != nil {
		*ud.Region = core.CleanString(*ud.Region)
	}
}
