package service

import (
	"context"

	"courtbook/internal/database"
	"courtbook/internal/models"
	"courtbook/internal/observability"
	"courtbook/internal/repository"
)

// SlotView is a slot with its effective status: reserved when an active
// reservation holds it, whatever the stored status says.
type SlotView struct {
	ID           uint              `json:"id"`
	VenueID      uint              `json:"venue_id"`
	Date         string            `json:"date"`
	StartTime    string            `json:"start_time"`
	EndTime      string            `json:"end_time"`
	Status       models.SlotStatus `json:"status"`
	StoredStatus models.SlotStatus `json:"stored_status"`
}

// UpdateSlotInput carries the optional changes of an updateSlot call.
type UpdateSlotInput struct {
	Window *models.Window
	Status *models.SlotStatus
}

// SlotRegistry owns slot records and their availability status. Its
// mutating methods expect repositories bound to an open transaction.
type SlotRegistry struct{}

// Create adds an available slot. An identical (venue, date, start, end)
// tuple is a Conflict.
func (SlotRegistry) Create(ctx context.Context, repos *repository.Repositories, venueID uint, w models.Window) (*models.Slot, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if _, err := repos.Venues.GetByID(ctx, venueID); err != nil {
		return nil, err
	}

	slot := &models.Slot{
		VenueID:   venueID,
		Date:      w.Date,
		StartTime: w.Start,
		EndTime:   w.End,
		Status:    models.SlotAvailable,
	}
	if err := repos.Slots.Create(ctx, slot); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, models.NewConflictError("A slot with this date and time already exists at the venue")
		}
		return nil, err
	}
	return slot, nil
}

// Claim atomically moves an available slot to reserved. Losing the race to
// another transaction, or finding the slot already reserved, is a Conflict.
func (SlotRegistry) Claim(ctx context.Context, repos *repository.Repositories, slotID uint) error {
	claimed, err := repos.Slots.ClaimAvailable(ctx, slotID)
	if err != nil {
		return err
	}
	if !claimed {
		if _, err := repos.Slots.GetByID(ctx, slotID); err != nil {
			return err
		}
		observability.SlotClaimConflicts.Inc()
		return models.NewConflictError("Slot is not available")
	}
	return nil
}

// MarkReserved sets the stored status to reserved. Repeating it is a no-op.
func (SlotRegistry) MarkReserved(ctx context.Context, repos *repository.Repositories, slotID uint) error {
	return repos.Slots.SetStatus(ctx, slotID, models.SlotReserved)
}

// MarkAvailable sets the stored status to available. Repeating it is a no-op.
func (SlotRegistry) MarkAvailable(ctx context.Context, repos *repository.Repositories, slotID uint) error {
	return repos.Slots.SetStatus(ctx, slotID, models.SlotAvailable)
}

// Availability lists a venue's slots with their effective status.
func (SlotRegistry) Availability(ctx context.Context, repos *repository.Repositories, venueID uint, date string) ([]SlotView, error) {
	slots, err := repos.Slots.ListByVenue(ctx, venueID, date)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(slots))
	for i := range slots {
		ids[i] = slots[i].ID
	}
	held, err := repos.Reservations.ActiveSlotIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]SlotView, len(slots))
	for i, s := range slots {
		effective := models.SlotAvailable
		if held[s.ID] {
			effective = models.SlotReserved
		}
		views[i] = SlotView{
			ID:           s.ID,
			VenueID:      s.VenueID,
			Date:         s.Date,
			StartTime:    s.StartTime,
			EndTime:      s.EndTime,
			Status:       effective,
			StoredStatus: s.Status,
		}
	}
	return views, nil
}

// Update changes a slot's window or status. The window may only move while
// no reservation, active or historical, references the slot. The status may
// only be set to the value its reservations imply.
func (r SlotRegistry) Update(ctx context.Context, repos *repository.Repositories, slotID uint, in UpdateSlotInput) (*models.Slot, error) {
	slot, err := repos.Slots.GetForUpdate(ctx, slotID)
	if err != nil {
		return nil, err
	}
	active, err := repos.Reservations.CountBySlot(ctx, slotID, true)
	if err != nil {
		return nil, err
	}

	if in.Window != nil {
		if err := in.Window.Validate(); err != nil {
			return nil, err
		}
		if active > 0 {
			return nil, models.NewConflictError("Cannot move a slot that has an active reservation")
		}
		total, err := repos.Reservations.CountBySlot(ctx, slotID, false)
		if err != nil {
			return nil, err
		}
		if total > 0 {
			return nil, models.NewConflictError("Cannot move a slot that has reservation history")
		}
		if err := repos.Slots.UpdateWindow(ctx, slotID, *in.Window); err != nil {
			if database.IsUniqueViolation(err) {
				return nil, models.NewConflictError("A slot with this date and time already exists at the venue")
			}
			return nil, err
		}
	}

	if in.Status != nil {
		switch {
		case !in.Status.Valid():
			return nil, models.NewValidationError("status must be available or reserved")
		case *in.Status == models.SlotReserved && active == 0:
			return nil, models.NewConflictError("A slot is only reserved through a reservation")
		case *in.Status == models.SlotAvailable && active > 0:
			return nil, models.NewConflictError("Slot has an active reservation; cancel it to release the slot")
		case *in.Status == models.SlotReserved:
			err = r.MarkReserved(ctx, repos, slotID)
		default:
			err = r.MarkAvailable(ctx, repos, slotID)
		}
		if err != nil {
			return nil, err
		}
	}

	if in.Window == nil && in.Status == nil {
		return slot, nil
	}
	return repos.Slots.GetByID(ctx, slotID)
}

// Delete removes a slot that no reservation references. Reservations are
// never deleted on their own, so any reference, active or historical, blocks it.
func (SlotRegistry) Delete(ctx context.Context, repos *repository.Repositories, slotID uint) (*models.Slot, error) {
	slot, err := repos.Slots.GetForUpdate(ctx, slotID)
	if err != nil {
		return nil, err
	}
	active, err := repos.Reservations.CountBySlot(ctx, slotID, true)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, models.NewConflictError("Slot has an active reservation")
	}
	total, err := repos.Reservations.CountBySlot(ctx, slotID, false)
	if err != nil {
		return nil, err
	}
	if total > 0 {
		return nil, models.NewConflictError("Slot has reservation history and cannot be deleted")
	}
	if err := repos.Slots.Delete(ctx, slotID); err != nil {
		return nil, err
	}
	return slot, nil
}
