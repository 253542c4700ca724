package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/repository"
)

// CreateReservationInput is the payload of createReservation.
type CreateReservationInput struct {
	SlotID uint   `json:"slot_id"`
	Notes  string `json:"notes"`
}

// ReservationQuery filters listReservations. UserID is honoured for
// administrators only; other callers always see their own reservations.
type ReservationQuery struct {
	UserID   *uint
	Status   models.ReservationStatus
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}

// ReservationPage is one page of listReservations.
type ReservationPage struct {
	Items  []models.Reservation `json:"items"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

const maxNotesLen = 2000

// CreateReservation reserves an available slot for the actor. The user row
// is locked first so concurrent creates by one user serialize on the
// overlap check; the slot is then claimed with a compare-and-set.
func (s *BookingService) CreateReservation(ctx context.Context, actor Actor, in CreateReservationInput) (*models.Reservation, error) {
	if in.SlotID == 0 {
		return nil, models.NewValidationError("slot_id is required")
	}
	if len(in.Notes) > maxNotesLen {
		return nil, models.NewValidationError("notes too long (max 2000 characters)")
	}

	var out *models.Reservation
	err := s.mutate(ctx, OpCreateReservation, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		now := s.now()
		user, err := repos.Users.GetForUpdate(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if s.gate.IsBlocked(user, now) {
			return models.NewBlockedUserError(fmt.Sprintf("User is blocked from reserving until %s",
				user.BlockedUntil.UTC().Format(time.RFC3339)))
		}

		slot, err := repos.Slots.GetByID(ctx, in.SlotID)
		if err != nil {
			return err
		}
		if slot.Status != models.SlotAvailable {
			return models.NewConflictError("Slot is not available")
		}
		overlapping, err := s.overlap.Conflicts(ctx, repos, user.ID, slot.Window())
		if err != nil {
			return err
		}
		if overlapping {
			return models.NewConflictError("You already hold a reservation that overlaps this slot")
		}

		if err := s.slots.Claim(ctx, repos, slot.ID); err != nil {
			return err
		}
		reservation, err := s.machine.Create(ctx, repos, user.ID, slot.ID, in.Notes)
		if err != nil {
			return err
		}
		u.touch(slot.VenueID)
		u.log(slog.Uint64("reservation_id", uint64(reservation.ID)), slog.Uint64("slot_id", uint64(slot.ID)))

		out, err = repos.Reservations.GetByID(ctx, reservation.ID)
		return err
	})
	return out, err
}

// CancelReservation cancels an active reservation and releases its slot.
// Cancellation is refused once the slot has started.
func (s *BookingService) CancelReservation(ctx context.Context, actor Actor, reservationID uint, reason string) (*models.Reservation, error) {
	var out *models.Reservation
	err := s.mutate(ctx, OpCancelReservation, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		reservation, err := repos.Reservations.GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := u.grant.checkOwner(actor, reservation.UserID); err != nil {
			return err
		}
		slot, err := repos.Slots.GetForUpdate(ctx, reservation.SlotID)
		if err != nil {
			return err
		}

		if reason == "" {
			reason = DefaultUserCancelReason
			if actor.IsAdmin() && actor.UserID != reservation.UserID {
				reason = DefaultAdminCancelReason
			}
		}
		if err := s.machine.Cancel(ctx, repos, reservation, slot, reason, s.now()); err != nil {
			return err
		}
		if err := s.cascade.ReleaseSlot(ctx, repos, slot.ID); err != nil {
			return err
		}
		u.touch(slot.VenueID)
		u.log(slog.Uint64("reservation_id", uint64(reservationID)), slog.String("reason", reason))

		out, err = repos.Reservations.GetByID(ctx, reservationID)
		return err
	})
	return out, err
}

// ConfirmReservation moves a pending reservation to confirmed.
func (s *BookingService) ConfirmReservation(ctx context.Context, actor Actor, reservationID uint) (*models.Reservation, error) {
	var out *models.Reservation
	err := s.mutate(ctx, OpConfirmReservation, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		reservation, err := repos.Reservations.GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := s.machine.Confirm(ctx, repos, reservation, s.now()); err != nil {
			return err
		}
		u.log(slog.Uint64("reservation_id", uint64(reservationID)))

		out, err = repos.Reservations.GetByID(ctx, reservationID)
		return err
	})
	return out, err
}

// CompleteReservation moves a confirmed reservation to completed. The
// reservation stops being active, so its slot is released.
func (s *BookingService) CompleteReservation(ctx context.Context, actor Actor, reservationID uint) (*models.Reservation, error) {
	var out *models.Reservation
	err := s.mutate(ctx, OpCompleteReservation, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		reservation, err := repos.Reservations.GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := s.machine.Complete(ctx, repos, reservation, s.now()); err != nil {
			return err
		}
		slot, err := repos.Slots.GetByID(ctx, reservation.SlotID)
		if err != nil {
			return err
		}
		if err := s.cascade.ReleaseSlot(ctx, repos, slot.ID); err != nil {
			return err
		}
		u.touch(slot.VenueID)
		u.log(slog.Uint64("reservation_id", uint64(reservationID)))

		out, err = repos.Reservations.GetByID(ctx, reservationID)
		return err
	})
	return out, err
}

// GetReservation returns a reservation with its slot and venue.
func (s *BookingService) GetReservation(ctx context.Context, actor Actor, reservationID uint) (*models.Reservation, error) {
	var out *models.Reservation
	err := s.read(ctx, OpGetReservation, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		reservation, err := repos.Reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := u.grant.checkOwner(actor, reservation.UserID); err != nil {
			return err
		}
		out = reservation
		return nil
	})
	return out, err
}

// ListReservations returns reservations ordered by slot date and start, newest first.
func (s *BookingService) ListReservations(ctx context.Context, actor Actor, q ReservationQuery) (*ReservationPage, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown status %q", q.Status))
	}
	for _, d := range []string{q.DateFrom, q.DateTo} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("date %q must use YYYY-MM-DD", d))
		}
	}

	var out *ReservationPage
	err := s.read(ctx, OpListReservations, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		filter := repository.ReservationFilter{
			UserID:   q.UserID,
			Status:   q.Status,
			DateFrom: q.DateFrom,
			DateTo:   q.DateTo,
			Limit:    q.Limit,
			Offset:   q.Offset,
		}
		if u.grant.ownerOnly {
			self := actor.UserID
			filter.UserID = &self
		}
		items, total, err := repos.Reservations.List(ctx, filter)
		if err != nil {
			return err
		}
		limit, offset := filter.Bounds()
		out = &ReservationPage{Items: items, Total: total, Limit: limit, Offset: offset}
		return nil
	})
	return out, err
}
