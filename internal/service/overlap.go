package service

import (
	"context"

	"courtbook/internal/models"
	"courtbook/internal/repository"
)

// Overlaps reports whether two windows on the same date intersect. Windows
// are half-open, so back-to-back slots do not overlap.
func Overlaps(a, b models.Window) bool {
	return a.Date == b.Date && a.Start < b.End && b.Start < a.End
}

// OverlapValidator checks a candidate window against a user's active reservations.
type OverlapValidator struct{}

// Conflicts reports whether the user already holds an active reservation
// whose slot overlaps candidate.
func (OverlapValidator) Conflicts(ctx context.Context, repos *repository.Repositories, userID uint, candidate models.Window) (bool, error) {
	held, err := repos.Reservations.ActiveSlotsForUserOnDate(ctx, userID, candidate.Date)
	if err != nil {
		return false, err
	}
	for i := range held {
		if Overlaps(held[i].Window(), candidate) {
			return true, nil
		}
	}
	return false, nil
}
