package models

import "github.com/google/uuid"

// Roles carried in access tokens
const (
	RoleVenue     = "venue"
	RolePersonnel = "personnel"
	RoleAgency    = "agency"
	RoleAdmin     = "admin"
)

// Actor is the authenticated caller of an engine operation
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

// HasRole reports whether the actor carries role
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor may bypass ownership checks
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// SystemActor is used by the scheduler and the admin CLI
var SystemActor = Actor{UserID: uuid.Nil, Roles: []string{RoleAdmin}}
