package services

import (
	"fmt"
	"slices"

	"github.com/boogle-events/apiserver/types"
)

// Actor is the authenticated caller of a use-case.
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == types.RoleAdmin
}

// Authorize decides whether requestorID, holding role, may mutate a
// resource owned by ownerID. Admins may act on anything; everyone else only
// on what they own.
func Authorize(role, ownerID, requestorID string) error {
	if role == types.RoleAdmin {
		return nil
	}
	if requestorID != "" && ownerID == requestorID {
		return nil
	}
	return ErrForbidden
}

// RequireRole returns ErrForbidden unless the actor holds one of roles.
func RequireRole(actor Actor, roles ...string) error {
	if slices.Contains(roles, actor.Role) {
		return nil
	}
	return fmt.Errorf("%w: insufficient permissions", ErrForbidden)
}

// ActingFor resolves the user a register or purchase call acts for. An
// empty target means the caller; naming someone else requires admin.
func ActingFor(actor Actor, target string) (string, error) {
	if target == "" || target == actor.ID {
		return actor.ID, nil
	}
	if actor.IsAdmin() {
		return target, nil
	}
	return "", fmt.Errorf("%w: you can only act for yourself", ErrForbidden)
}
