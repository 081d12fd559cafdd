package user

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/sdoims/core"
)

type User struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash []byte     `db:"password_hash" json:"-"`
	SchoolID     null.Int64 `db:"school_id" json:"school_id"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLogin    null.Time  `db:"last_login" json:"last_login"` // UTC
	RoleIDs      []int64    `db:"-" json:"role_ids"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"` // UTC
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"` // UTC
	DeletedAt    null.Time  `db:"deleted_at" json:"deleted_at"`
}

func (u User) GetID() int64  { return u.ID }
func (u User) Trashed() bool { return u.DeletedAt.Valid }

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string  `json:"name" validate:"required,notblank,max=255"`
	Email           string  `json:"email" validate:"required,email,max=255"`
	Password        string  `json:"password" validate:"required"`
	PasswordConfirm string  `json:"password_confirm" validate:"required,eqfield=Password"`
	SchoolID        *int64  `json:"school_id" validate:"omitempty,exists=schools"`
	RoleIDs         []int64 `json:"role_ids" validate:"dive,exists=roles"`
	IsActive        *bool   `json:"is_active"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}

// UpdateUser defines what information may be provided to modify an existing User.
// RoleIDs, when present, replaces the user's roles wholesale.
type UpdateUser struct {
	Name            string   `json:"name" validate:"max=255"`
	Email           string   `json:"email" validate:"omitempty,email,max=255"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	SchoolID        *int64   `json:"school_id" validate:"omitempty,exists=schools"`
	RoleIDs         *[]int64 `json:"role_ids" validate:"omitempty,dive,exists=roles"`
	IsActive        *bool    `json:"is_active"`
}

func (uu *UpdateUser) Clean() {
	uu.Name = core.CleanString(uu.Name)
	uu.Email = core.CleanString(uu.Email, true /* lower */)
}

// Credentials are exchanged for an access token.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
