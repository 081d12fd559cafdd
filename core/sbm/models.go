// Package sbm holds the School-Based Management assessment checklists, their indicators and the ratings given to them.
package sbm

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/trezcool/sdoims/core"
)

// MaxRating is the highest degree of practice an indicator can be rated.
const MaxRating = 3

type Checklist struct {
	ID         int64     `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	SchoolYear string    `db:"school_year" json:"school_year"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (c Checklist) GetID() int64 { return c.ID }

type NewChecklist struct {
	Title      string `json:"title" validate:"required,notblank,max=255"`
	SchoolYear string `json:"school_year" validate:"required,schoolyear"`
}

func (nc *NewChecklist) Clean() {
	nc.Title = core.CleanString(nc.Title)
	nc.SchoolYear = core.CleanString(nc.SchoolYear)
}

type UpdateChecklist struct {
	Title      string `json:"title" validate:"max=255"`
	SchoolYear string `json:"school_year" validate:"omitempty,schoolyear"`
}

func (uc *UpdateChecklist) Clean() {
	uc.Title = core.CleanString(uc.Title)
	uc.SchoolYear = core.CleanString(uc.SchoolYear)
}

type Indicator struct {
	ID          int64     `db:"id" json:"id"`
	ChecklistID int64     `db:"checklist_id" json:"checklist_id"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (i Indicator) GetID() int64 { return i.ID }

type NewIndicator struct {
	ChecklistID int64  `json:"checklist_id" validate:"required,exists=sbm_checklists"`
	Code        string `json:"code" validate:"required,notblank,max=20"`
	Description string `json:"description" validate:"required,notblank,max=2000"`
}

func (ni *NewIndicator) Clean() {
	ni.Code = core.CleanString(ni.Code)
	ni.Description = core.CleanString(ni.Description)
}

type UpdateIndicator struct {
	Code        string `json:"code" validate:"max=20"`
	Description string `json:"description" validate:"max=2000"`
}

func (ui *UpdateIndicator) Clean() {
	ui.Code = core.CleanString(ui.Code)
	ui.Description = core.CleanString(ui.Description)
}

type Response struct {
	ID          int64     `db:"id" json:"id"`
	ChecklistID int64     `db:"checklist_id" json:"checklist_id"`
	IndicatorID int64     `db:"indicator_id" json:"indicator_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Rating      int       `db:"rating" json:"rating"`
	Remarks     string    `db:"remarks" json:"remarks"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (r Response) GetID() int64 { return r.ID }

// ResponseEntry is one row of the bulk response form. Rating is a pointer so that 0 is a valid answer.
type ResponseEntry struct {
	IndicatorID int64  `json:"indicator_id"`
	Rating      *int   `json:"rating"`
	Remarks     string `json:"remarks"`
}

func (e ResponseEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.IndicatorID, validation.Required),
		validation.Field(&e.Rating, validation.NotNil, validation.Min(0), validation.Max(MaxRating)),
		validation.Field(&e.Remarks, validation.Length(0, 1000)),
	)
}

type UpdateResponse struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=0,max=3"`
	Remarks *string `json:"remarks" validate:"omitempty,max=1000"`
}

func (ur *UpdateResponse) Clean() {
	if ur.Remarks != nil {
		*ur.Remarks = core.CleanString(*ur.Remarks)
	}
}
