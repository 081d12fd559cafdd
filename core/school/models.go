package school

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
)

type School struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	SchoolCode string    `db:"school_code" json:"school_code"`
	DistrictID int64     `db:"district_id" json:"district_id"`
	Address    string    `db:"address" json:"address"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"` // UTC
	DeletedAt  null.Time `db:"deleted_at" json:"deleted_at"`
}

func (s School) GetID() int64  { return s.ID }
func (s School) Trashed() bool { return s.DeletedAt.Valid }

// NewSchool contains information needed to create a new School.
type NewSchool struct {
	Name       string `json:"name" validate:"required,notblank,max=255"`
	SchoolCode string `json:"school_code" validate:"required,len=6,numeric"`
	DistrictID int64  `json:"district_id" validate:"required,exists=districts"`
	Address    string `json:"address" validate:"max=500"`
}

func (ns *NewSchool) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.SchoolCode = core.CleanString(ns.SchoolCode)
	ns.Address = core.CleanString(ns.Address)
}

// UpdateSchool defines what information may be provided to modify an existing School.
type UpdateSchool struct {
	Name       string  `json:"name" validate:"max=255"`
	SchoolCode string  `json:"school_code" validate:"omitempty,len=6,numeric"`
	DistrictID int64   `json:"district_id" validate:"omitempty,exists=districts"`
	Address    *string `json:"address" validate:"omitempty,max=500"`
}

func (us *UpdateSchool) Clean() {
	us.Name = core.CleanString(us.Name)
	us.SchoolCode = core.CleanString(us.SchoolCode)
	if us.Address != nil {
		*us.Address = core.CleanString(*us.Address)
	}
}
