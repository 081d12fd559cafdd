// Package rbac manages roles and the permissions (capability strings) granted through them.
package rbac

import (
	"time"

	"github.com/trezcool/sdoims/core"
)

type Permission struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (p Permission) GetID() int64 { return p.ID }

type NewPermission struct {
	Title string `json:"title" validate:"required,max=100,alphanum_"`
}

func (np *NewPermission) Clean() { np.Title = core.CleanString(np.Title, true /* lower */) }

type UpdatePermission struct {
	Title string `json:"title" validate:"omitempty,max=100,alphanum_"`
}

func (up *UpdatePermission) Clean() { up.Title = core.CleanString(up.Title, true /* lower */) }

type Role struct {
	ID            int64     `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	PermissionIDs []int64   `db:"-" json:"permission_ids"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (r Role) GetID() int64 { return r.ID }

// NewRole contains information needed to create a new Role.
type NewRole struct {
	Title         string  `json:"title" validate:"required,notblank,max=100"`
	PermissionIDs []int64 `json:"permission_ids" validate:"dive,exists=permissions"`
}

func (nr *NewRole) Clean() { nr.Title = core.CleanString(nr.Title) }

// UpdateRole replaces the permission set wholesale when PermissionIDs is present.
type UpdateRole struct {
	Title         string   `json:"title" validate:"max=100"`
	PermissionIDs *[]int64 `json:"permission_ids" validate:"omitempty,dive,exists=permissions"`
}

func (ur *UpdateRole) Clean() { ur.Title = core.CleanString(ur.Title) }
