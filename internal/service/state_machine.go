package service

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/observability"
	"courtbook/internal/repository"
)

const (
	// DefaultUserCancelReason is recorded when an owner cancels without a reason.
	DefaultUserCancelReason = "Cancelled by user"
	// DefaultAdminCancelReason is recorded when an administrator cancels
	// someone else's reservation without a reason.
	DefaultAdminCancelReason = "Cancelled by administrator"
)

var transitions = map[models.ReservationStatus][]models.ReservationStatus{
	models.ReservationPending:   {models.ReservationConfirmed, models.ReservationCancelled},
	models.ReservationConfirmed: {models.ReservationCompleted, models.ReservationCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to models.ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ReservationMachine drives reservation lifecycle transitions. Every
// transition is a compare-and-set on the current status.
type ReservationMachine struct {
	Location *time.Location
}

// Create inserts a pending reservation. The caller has already claimed the slot.
func (ReservationMachine) Create(ctx context.Context, repos *repository.Repositories, userID, slotID uint, notes string) (*models.Reservation, error) {
	reservation := &models.Reservation{
		UserID: userID,
		SlotID: slotID,
		Status: models.ReservationPending,
		Notes:  notes,
	}
	if err := repos.Reservations.Create(ctx, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// Cancel moves an active reservation to cancelled. Reservations whose slot
// has already started cannot be cancelled.
func (m ReservationMachine) Cancel(ctx context.Context, repos *repository.Repositories, r *models.Reservation, slot *models.Slot, reason string, now time.Time) error {
	if !CanTransition(r.Status, models.ReservationCancelled) {
		return models.NewConflictError(fmt.Sprintf("Reservation is already %s", r.Status))
	}
	starts, err := slot.Window().StartsAt(m.Location)
	if err != nil {
		return models.NewInternalError(fmt.Errorf("parse slot %d start: %w", slot.ID, err))
	}
	if !starts.After(now) {
		return models.NewConflictError("Cannot cancel a reservation whose slot has already started")
	}
	return m.transition(ctx, repos, r, models.ReservationCancelled, map[string]interface{}{
		"cancel_reason": reason,
		"cancelled_at":  now,
	})
}

// Confirm moves a pending reservation to confirmed.
func (m ReservationMachine) Confirm(ctx context.Context, repos *repository.Repositories, r *models.Reservation, now time.Time) error {
	return m.transition(ctx, repos, r, models.ReservationConfirmed, map[string]interface{}{
		"confirmed_at": now,
	})
}

// Complete moves a confirmed reservation to completed.
func (m ReservationMachine) Complete(ctx context.Context, repos *repository.Repositories, r *models.Reservation, now time.Time) error {
	return m.transition(ctx, repos, r, models.ReservationCompleted, map[string]interface{}{
		"completed_at": now,
	})
}

func (ReservationMachine) transition(ctx context.Context, repos *repository.Repositories, r *models.Reservation, to models.ReservationStatus, updates map[string]interface{}) error {
	from := r.Status
	if !CanTransition(from, to) {
		return models.NewConflictError(fmt.Sprintf("Reservation is %s and cannot become %s", from, to))
	}
	updates["status"] = to
	ok, err := repos.Reservations.Transition(ctx, r.ID, from, updates)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewConflictError("Reservation was modified concurrently")
	}
	observability.ReservationTransitions.WithLabelValues(string(from), string(to)).Inc()
	r.Status = to
	return nil
}
