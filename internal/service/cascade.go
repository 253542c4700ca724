package service

import (
	"context"

	"courtbook/internal/models"
	"courtbook/internal/repository"
)

// CascadeReport counts the rows a cascading delete removed.
type CascadeReport struct {
	Slots         int64 `json:"slots"`
	Reservations  int64 `json:"reservations"`
	Comments      int64 `json:"comments"`
	SlotsReleased int64 `json:"slots_released"`
	// VenueIDs are the venues whose availability changed.
	VenueIDs []uint `json:"-"`
}

// CascadeCoordinator propagates deletions and releases slots held by
// reservations that leave the active set.
type CascadeCoordinator struct {
	Slots SlotRegistry
}

// ReleaseSlot returns a slot to available after its reservation stopped
// being active.
func (c CascadeCoordinator) ReleaseSlot(ctx context.Context, repos *repository.Repositories, slotID uint) error {
	return c.Slots.MarkAvailable(ctx, repos, slotID)
}

// DeleteVenue hard-deletes every reservation on the venue's slots, then
// the slots, then the venue. Sanctions that referenced a removed
// reservation keep their block but lose the reference.
func (CascadeCoordinator) DeleteVenue(ctx context.Context, repos *repository.Repositories, venueID uint) (*CascadeReport, error) {
	if _, err := repos.Venues.GetForUpdate(ctx, venueID); err != nil {
		return nil, err
	}
	report := &CascadeReport{VenueIDs: []uint{venueID}}

	slotIDs, err := repos.Slots.IDsByVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	reservationIDs, err := repos.Reservations.IDsBySlots(ctx, slotIDs)
	if err != nil {
		return nil, err
	}
	if _, err := repos.Sanctions.DetachReservations(ctx, reservationIDs); err != nil {
		return nil, err
	}
	if report.Reservations, err = repos.Reservations.DeleteBySlots(ctx, slotIDs); err != nil {
		return nil, err
	}
	if report.Slots, err = repos.Slots.DeleteByVenue(ctx, venueID); err != nil {
		return nil, err
	}
	if report.Comments, err = repos.Comments.DeleteByVenue(ctx, venueID); err != nil {
		return nil, err
	}
	if err := repos.Venues.Delete(ctx, venueID); err != nil {
		return nil, err
	}
	return report, nil
}

// DeleteUser removes the user's comments, releases the slots their active
// reservations hold, deletes those reservations along with the user's
// sanctions and profile, then the user.
func (c CascadeCoordinator) DeleteUser(ctx context.Context, repos *repository.Repositories, userID uint) (*CascadeReport, error) {
	if _, err := repos.Users.GetForUpdate(ctx, userID); err != nil {
		return nil, err
	}
	report := &CascadeReport{}

	var err error
	if report.Comments, err = repos.Comments.DeleteByUser(ctx, userID); err != nil {
		return nil, err
	}

	held, err := repos.Reservations.ActiveSlotIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if report.VenueIDs, err = repos.Slots.VenueIDs(ctx, held); err != nil {
		return nil, err
	}
	if report.SlotsReleased, err = repos.Slots.SetStatusBulk(ctx, held, models.SlotAvailable); err != nil {
		return nil, err
	}

	reservationIDs, err := repos.Reservations.IDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := repos.Sanctions.DetachReservations(ctx, reservationIDs); err != nil {
		return nil, err
	}
	if report.Reservations, err = repos.Reservations.DeleteByUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := repos.Sanctions.DeleteByUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := repos.Users.DeleteProfile(ctx, userID); err != nil {
		return nil, err
	}
	if err := repos.Users.Delete(ctx, userID); err != nil {
		return nil, err
	}
	return report, nil
}
