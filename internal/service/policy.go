// Package service holds the booking engine: slot registry, overlap validator,
// sanction gate, reservation state machine, cascade coordinator and the
// BookingService that runs each public operation in one transaction.
package service

import (
	"fmt"

	"courtbook/internal/models"
)

// Actor is the authenticated caller of an operation. A zero UserID is anonymous.
type Actor struct {
	UserID uint
	Role   models.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Operation names a public booking operation.
type Operation string

const (
	OpCreateReservation   Operation = "createReservation"
	OpCancelReservation   Operation = "cancelReservation"
	OpConfirmReservation  Operation = "confirmReservation"
	OpCompleteReservation Operation = "completeReservation"
	OpGetReservation      Operation = "getReservation"
	OpListReservations    Operation = "listReservations"
	OpCreateSlot          Operation = "createSlot"
	OpUpdateSlot          Operation = "updateSlot"
	OpDeleteSlot          Operation = "deleteSlot"
	OpGetAvailability     Operation = "getAvailability"
	OpCreateVenue         Operation = "createVenue"
	OpUpdateVenue         Operation = "updateVenue"
	OpGetVenue            Operation = "getVenue"
	OpListVenues          Operation = "listVenues"
	OpDeleteVenue         Operation = "deleteVenue"
	OpCreateSanction      Operation = "createSanction"
	OpLiftSanction        Operation = "liftSanction"
	OpListUserSanctions   Operation = "listUserSanctions"
	OpListActiveSanctions Operation = "listActiveSanctions"
	OpCheckBlocked        Operation = "checkBlocked"
	OpDeleteUser          Operation = "deleteUser"
	OpExpireSanctions     Operation = "expireSanctions"
)

// capability lists who may run an operation. Owner means the owner of the
// target resource may run it even without one of the roles.
type capability struct {
	public bool
	roles  []models.Role
	owner  bool
}

var (
	anyRole   = []models.Role{models.RoleUser, models.RoleOperator, models.RoleAdmin}
	adminOnly = []models.Role{models.RoleAdmin}
	staff     = []models.Role{models.RoleAdmin, models.RoleOperator}
)

var capabilities = map[Operation]capability{
	OpCreateReservation:   {roles: anyRole},
	OpCancelReservation:   {roles: adminOnly, owner: true},
	OpConfirmReservation:  {roles: adminOnly},
	OpCompleteReservation: {roles: staff},
	OpGetReservation:      {roles: adminOnly, owner: true},
	OpListReservations:    {roles: adminOnly, owner: true},
	OpCreateSlot:          {roles: adminOnly},
	OpUpdateSlot:          {roles: adminOnly},
	OpDeleteSlot:          {roles: adminOnly},
	OpGetAvailability:     {public: true},
	OpCreateVenue:         {roles: adminOnly},
	OpUpdateVenue:         {roles: adminOnly},
	OpGetVenue:            {public: true},
	OpListVenues:          {public: true},
	OpDeleteVenue:         {roles: adminOnly},
	OpCreateSanction:      {roles: adminOnly},
	OpLiftSanction:        {roles: adminOnly},
	OpListUserSanctions:   {roles: adminOnly, owner: true},
	OpListActiveSanctions: {roles: adminOnly},
	OpCheckBlocked:        {public: true},
	OpDeleteUser:          {roles: adminOnly, owner: true},
}

// grant is the outcome of an authorization check.
type grant struct {
	// ownerOnly means the actor passed only as a potential owner; the
	// operation must confirm ownership once the target is loaded.
	ownerOnly bool
}

// authorize checks the actor against the capability table.
func authorize(op Operation, actor Actor) (grant, error) {
	c, ok := capabilities[op]
	if !ok {
		return grant{}, models.NewInternalError(fmt.Errorf("no capability registered for %s", op))
	}
	if c.public {
		return grant{}, nil
	}
	if actor.UserID == 0 {
		return grant{}, models.NewUnauthorizedError("Authentication required")
	}
	for _, r := range c.roles {
		if actor.Role == r {
			return grant{}, nil
		}
	}
	if c.owner {
		return grant{ownerOnly: true}, nil
	}
	return grant{}, models.NewForbiddenError(fmt.Sprintf("Role %q may not perform %s", actor.Role, op))
}

// checkOwner enforces ownership for owner-only grants.
func (g grant) checkOwner(actor Actor, ownerID uint) error {
	if g.ownerOnly && actor.UserID != ownerID {
		return models.NewForbiddenError("Only the owner or an administrator may perform this action")
	}
	return nil
}
