// Package opcr holds the Office Performance Commitment and Review forms and their review workflow.
package opcr

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const (
	StatusPending     = "pending"
	StatusApproved    = "approved"
	StatusDisapproved = "disapproved"
)

type OPCR struct {
	ID           int64      `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	RatingPeriod string     `db:"rating_period" json:"rating_period"`
	SchoolID     null.Int64 `db:"school_id" json:"school_id"`
	Document     string     `db:"document" json:"document"`
	Status       string     `db:"status" json:"status"`
	Remarks      string     `db:"remarks" json:"remarks"`
	SubmittedBy  int64      `db:"submitted_by" json:"submitted_by"`
	ReviewedBy   null.Int64 `db:"reviewed_by" json:"reviewed_by"`
	ReviewedAt   null.Time  `db:"reviewed_at" json:"reviewed_at"` // UTC
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`   // UTC
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`   // UTC
	DeletedAt    null.Time  `db:"deleted_at" json:"deleted_at"`
}

func (o OPCR) GetID() int64                   { return o.ID }
func (o OPCR) Trashed() bool                  { return o.DeletedAt.Valid }
func (o *OPCR) AttachmentPath() string        { return o.Document }
func (o *OPCR) SetAttachmentPath(path string) { o.Document = path }

// Locked reports whether the OPCR may no longer be edited or deleted.
func (o OPCR) Locked() bool { return o.Status == StatusApproved }

// NewOPCR is posted as a multipart form with the PDF in the "document" part.
type NewOPCR struct {
	Title        string       `json:"title" form:"title" validate:"required,notblank,max=255"`
	RatingPeriod string       `json:"rating_period" form:"rating_period" validate:"required,notblank,max=50"`
	SchoolID     int64        `json:"school_id" form:"school_id" validate:"omitempty,exists=schools"`
	Document     *core.Upload `json:"document,omitempty" form:"-"`
}

func (no *NewOPCR) Clean() {
	no.Title = core.CleanString(no.Title)
	no.RatingPeriod = core.CleanString(no.RatingPeriod)
}

func (no *NewOPCR) Validate() error {
	return validation.ValidateStruct(no, validation.Field(&no.Document, validation.NotNil, resource.PDF))
}

func (no *NewOPCR) Upload() *core.Upload      { return no.Document }
func (no *NewOPCR) SetUpload(up *core.Upload) { no.Document = up }

type UpdateOPCR struct {
	Title        string       `json:"title" form:"title" validate:"max=255"`
	RatingPeriod string       `json:"rating_period" form:"rating_period" validate:"max=50"`
	SchoolID     int64        `json:"school_id" form:"school_id" validate:"omitempty,exists=schools"`
	Document     *core.Upload `json:"document,omitempty" form:"-"`
}

func (uo *UpdateOPCR) Clean() {
	uo.Title = core.CleanString(uo.Title)
	uo.RatingPeriod = core.CleanString(uo.RatingPeriod)
}

func (uo *UpdateOPCR) Validate() error {
	return validation.ValidateStruct(uo, validation.Field(&uo.Document, resource.PDF))
}

func (uo *UpdateOPCR) Upload() *core.Upload      { return uo.Document }
func (uo *UpdateOPCR) SetUpload(up *core.Upload) { uo.Document = up }

// Review approves or disapproves a pending OPCR.
type Review struct {
	Status  string `json:"status" validate:"required,oneof=approved disapproved"`
	Remarks string `json:"remarks" validate:"max=2000"`
}

func (r *Review) Clean() {
	r.Status = core.CleanString(r.Status, true /* lower */)
	r.Remarks = core.CleanString(r.Remarks)
}
