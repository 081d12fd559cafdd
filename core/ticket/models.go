// Package ticket is the IT helpdesk: ticket categories and the tickets filed under them.
package ticket

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

type Category struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (c Category) GetID() int64 { return c.ID }

type NewCategory struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func (nc *NewCategory) Clean() { nc.Name = core.CleanString(nc.Name) }

type UpdateCategory struct {
	Name string `json:"name" validate:"max=100"`
}

func (uc *UpdateCategory) Clean() { uc.Name = core.CleanString(uc.Name) }

type Ticket struct {
	ID          int64      `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	CategoryID  int64      `db:"category_id" json:"category_id"`
	Priority    string     `db:"priority" json:"priority"`
	Status      string     `db:"status" json:"status"`
	CreatedBy   int64      `db:"created_by" json:"created_by"`
	AssignedTo  null.Int64 `db:"assigned_to" json:"assigned_to"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"` // UTC
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"` // UTC
	DeletedAt   null.Time  `db:"deleted_at" json:"deleted_at"`
}

func (t Ticket) GetID() int64  { return t.ID }
func (t Ticket) Trashed() bool { return t.DeletedAt.Valid }

// NewTicket contains information needed to file a new Ticket. The actor becomes its creator.
type NewTicket struct {
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=5000"`
	CategoryID  int64  `json:"category_id" validate:"required,exists=ticket_categories"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssignedTo  *int64 `json:"assigned_to" validate:"omitempty,exists=users"`
}

func (nt *NewTicket) Clean() {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Priority = core.CleanString(nt.Priority, true /* lower */)
	if nt.Priority == "" {
		nt.Priority = PriorityMedium
	}
}

type UpdateTicket struct {
	Title       string  `json:"title" validate:"max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	CategoryID  int64   `json:"category_id" validate:"omitempty,exists=ticket_categories"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      string  `json:"status" validate:"omitempty,oneof=open in_progress resolved closed"`
	AssignedTo  *int64  `json:"assigned_to" validate:"omitempty,exists=users"`
}

func (ut *UpdateTicket) Clean() {
	ut.Title = core.CleanString(ut.Title)
	if ut.Description != nil {
		*ut.Description = core.CleanString(*ut.Description)
	}
	ut.Priority = core.CleanString(ut.Priority, true /* lower */)
	ut.Status = core.CleanString(ut.Status, true /* lower */)
}
