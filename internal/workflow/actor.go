package workflow

import "slices"

// Actor is the caller of a workflow operation. Capabilities are decided by
// the caller before invoking the core.
type Actor struct {
	UserID             string
	Roles              []string
	CanRequestRevision bool
	IsAdmin            bool
}

// NewActor derives capabilities from the actor's roles.
func NewActor(userID string, roles, revisionRoles, adminRoles []string) Actor {
	a := Actor{UserID: userID, Roles: roles}
	for _, r := range roles {
		if slices.Contains(revisionRoles, r) {
			a.CanRequestRevision = true
		}
		if slices.Contains(adminRoles, r) {
			a.IsAdmin = true
		}
	}
	return a
}
