// Package dcp tracks DepEd Computerization Program deliveries: batches of
// equipment, their items, the recipient schools and the reported item condition.
package dcp

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const (
	ConditionWorking       = "working"
	ConditionForRepair     = "for_repair"
	ConditionUnserviceable = "unserviceable"
	ConditionLost          = "lost"

	dateLayout = "2006-01-02"
)

var conditions = []interface{}{ConditionWorking, ConditionForRepair, ConditionUnserviceable, ConditionLost}

type Batch struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	BudgetYear   int       `db:"budget_year" json:"budget_year"`
	DeliveryDate null.Time `db:"delivery_date" json:"delivery_date"`
	Slug         string    `db:"slug" json:"slug"`
	Document     string    `db:"document" json:"document"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"` // UTC
	DeletedAt    null.Time `db:"deleted_at" json:"deleted_at"`
}

func (b Batch) GetID() int64                   { return b.ID }
func (b Batch) Trashed() bool                  { return b.DeletedAt.Valid }
func (b *Batch) AttachmentPath() string        { return b.Document }
func (b *Batch) SetAttachmentPath(path string) { b.Document = path }

// NewBatch is posted as a multipart form; Document is the optional PDF part.
type NewBatch struct {
	Name         string       `json:"name" form:"name" validate:"required,notblank,max=255"`
	Description  string       `json:"description" form:"description" validate:"max=5000"`
	BudgetYear   int          `json:"budget_year" form:"budget_year" validate:"required,min=2000,max=2100"`
	DeliveryDate string       `json:"delivery_date" form:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	Document     *core.Upload `json:"document,omitempty" form:"-"`
}

func (nb *NewBatch) Clean() {
	nb.Name = core.CleanString(nb.Name)
	nb.Description = core.CleanString(nb.Description)
	nb.DeliveryDate = core.CleanString(nb.DeliveryDate)
}

func (nb *NewBatch) Validate() error {
	return validation.ValidateStruct(nb, validation.Field(&nb.Document, resource.PDF))
}

func (nb *NewBatch) Upload() *core.Upload      { return nb.Document }
func (nb *NewBatch) SetUpload(up *core.Upload) { nb.Document = up }

// UpdateBatch keeps the current value of absent fields; an empty description or delivery date clears it.
// The slug never changes.
type UpdateBatch struct {
	Name         string       `json:"name" form:"name" validate:"max=255"`
	Description  *string      `json:"description" form:"description" validate:"omitempty,max=5000"`
	BudgetYear   int          `json:"budget_year" form:"budget_year" validate:"omitempty,min=2000,max=2100"`
	DeliveryDate *string      `json:"delivery_date" form:"delivery_date"`
	Document     *core.Upload `json:"document,omitempty" form:"-"`
}

func (ub *UpdateBatch) Clean() {
	ub.Name = core.CleanString(ub.Name)
	if ub.Description != nil {
		*ub.Description = core.CleanString(*ub.Description)
	}
	if ub.DeliveryDate != nil {
		*ub.DeliveryDate = core.CleanString(*ub.DeliveryDate)
	}
}

func (ub *UpdateBatch) Validate() error {
	return validation.ValidateStruct(ub,
		validation.Field(&ub.DeliveryDate, validation.Date(dateLayout)),
		validation.Field(&ub.Document, resource.PDF),
	)
}

func (ub *UpdateBatch) Upload() *core.Upload      { return ub.Document }
func (ub *UpdateBatch) SetUpload(up *core.Upload) { ub.Document = up }

type Item struct {
	ID        int64     `db:"id" json:"id"`
	BatchID   int64     `db:"batch_id" json:"batch_id"`
	Name      string    `db:"name" json:"name"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Unit      string    `db:"unit" json:"unit"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (i Item) GetID() int64 { return i.ID }

type NewItem struct {
	BatchID  int64  `json:"batch_id" validate:"required,exists=dcp_batches"`
	Name     string `json:"name" validate:"required,notblank,max=255"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=10000"`
	Unit     string `json:"unit" validate:"max=50"`
}

func (ni *NewItem) Clean() {
	ni.Name = core.CleanString(ni.Name)
	ni.Unit = core.CleanString(ni.Unit)
}

type UpdateItem struct {
	Name     string  `json:"name" validate:"max=255"`
	Quantity int     `json:"quantity" validate:"omitempty,min=1,max=10000"`
	Unit     *string `json:"unit" validate:"omitempty,max=50"`
}

func (ui *UpdateItem) Clean() {
	ui.Name = core.CleanString(ui.Name)
	if ui.Unit != nil {
		*ui.Unit = core.CleanString(*ui.Unit)
	}
}

type Recipient struct {
	ID            int64     `db:"id" json:"id"`
	BatchID       int64     `db:"batch_id" json:"batch_id"`
	SchoolID      int64     `db:"school_id" json:"school_id"`
	ContactPerson string    `db:"contact_person" json:"contact_person"`
	Slug          string    `db:"slug" json:"slug"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"` // UTC
	DeletedAt     null.Time `db:"deleted_at" json:"deleted_at"`
}

func (r Recipient) GetID() int64  { return r.ID }
func (r Recipient) Trashed() bool { return r.DeletedAt.Valid }

type NewRecipient struct {
	BatchID       int64  `json:"batch_id" validate:"required,exists=dcp_batches"`
	SchoolID      int64  `json:"school_id" validate:"required,exists=schools"`
	ContactPerson string `json:"contact_person" validate:"max=255"`
}

func (nr *NewRecipient) Clean() { nr.ContactPerson = core.CleanString(nr.ContactPerson) }

type UpdateRecipient struct {
	ContactPerson *string `json:"contact_person" validate:"omitempty,max=255"`
}

func (ur *UpdateRecipient) Clean() {
	if ur.ContactPerson != nil {
		*ur.ContactPerson = core.CleanString(*ur.ContactPerson)
	}
}

type ItemStatus struct {
	ID          int64     `db:"id" json:"id"`
	RecipientID int64     `db:"recipient_id" json:"recipient_id"`
	ItemID      int64     `db:"item_id" json:"item_id"`
	Condition   string    `db:"condition" json:"condition"`
	Remarks     string    `db:"remarks" json:"remarks"`
	ReportedBy  int64     `db:"reported_by" json:"reported_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (s ItemStatus) GetID() int64 { return s.ID }

// StatusEntry is one row of the bulk item status form.
type StatusEntry struct {
	ItemID    int64  `json:"item_id"`
	Condition string `json:"condition"`
	Remarks   string `json:"remarks"`
}

func (e StatusEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ItemID, validation.Required),
		validation.Field(&e.Condition, validation.Required, validation.In(conditions...)),
		validation.Field(&e.Remarks, validation.Length(0, 1000)),
	)
}

type UpdateItemStatus struct {
	Condition string  `json:"condition" validate:"omitempty,oneof=working for_repair unserviceable lost"`
	Remarks   *string `json:"remarks" validate:"omitempty,max=1000"`
}

func (us *UpdateItemStatus) Clean() {
	us.Condition = core.CleanString(us.Condition, true /* lower */)
	if us.Remarks != nil {
		*us.Remarks = core.CleanString(*us.Remarks)
	}
}
