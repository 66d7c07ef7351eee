package service

import (
	"fmt"

	"cleanops/internal/models"
)

func requireAdmin(a models.Actor) error {
	if !a.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrNotAuthorized)
	}
	return nil
}

// requireAssignee allows only the employee currently assigned to b.
func requireAssignee(a models.Actor, b *models.Booking) error {
	if a.Role != models.RoleEmployee || !b.IsAssignedTo(a.ID) {
		return fmt.Errorf("%w: only the assigned employee may do this", ErrNotAuthorized)
	}
	return nil
}

// canView reports whether a may read booking b.
func canView(a models.Actor, b *models.Booking) bool {
	switch a.Role {
	case models.RoleAdmin:
		return true
	case models.RoleEmployee:
		return b.IsAssignedTo(a.ID)
	case models.RoleClient:
		return b.RequesterID == a.ID
	}
	return false
}
