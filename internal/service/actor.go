package service

import (
	"fmt"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"
)

// Actor is the identity performing an operation, passed explicitly rather
// than read from ambient request state.
type Actor struct {
	ID   uint
	Role model.UserRole
}

func requireRole(actor Actor, required model.UserRole) error {
	if !actor.Role.AtLeast(required) {
		return fmt.Errorf("%w: %s requires %s capability", util.ErrForbidden, actor.Role, required)
	}
	return nil
}
