package core

import (
	"sort"
)

// Actor is the authenticated user a request is performed on behalf of.
// It is built once per request and passed explicitly to every service call.
type Actor struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	SchoolID    *int64   `json:"school_id,omitempty"`
	Permissions []string `json:"permissions"`
}

// NewActor returns an Actor holding a sorted copy of perms.
func NewActor(id int64, name, email string, perms ...string) Actor {
	p := make([]string, len(perms))
	copy(p, perms)
	sort.Strings(p)
	return Actor{ID: id, Name: name, Email: email, Permissions: p}
}

// Can reports whether the actor holds capability. Permissions must be sorted.
func (a Actor) Can(capability string) bool {
	i := sort.SearchStrings(a.Permissions, capability)
	return i < len(a.Permissions) && a.Permissions[i] == capability
}

// Authorize returns a *ForbiddenError unless the actor holds capability.
func (a Actor) Authorize(capability string) error {
	if a.Can(capability) {
		return nil
	}
	return NewForbiddenError(capability)
}

// Capability builds the `<resource>_<action>` capability string.
func Capability(resource, action string) string {
	return resource + "_" + action
}

const (
	ActionAccess = "access"
	ActionShow   = "show"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionReview = "approve"
)

// Actions are the capability suffixes every resource exposes.
var Actions = []string{ActionAccess, ActionShow, ActionCreate, ActionEdit, ActionDelete}
