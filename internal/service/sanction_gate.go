package service

import (
	"context"
	"math"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/models"
	"courtbook/internal/repository"
)

// MaxSanctionDays caps the duration of a single sanction.
const MaxSanctionDays = 3650

// BlockStatus is the public view of a user's reservation block.
type BlockStatus struct {
	UserID        uint       `json:"user_id"`
	Blocked       bool       `json:"blocked"`
	DaysRemaining int        `json:"days_remaining,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// ApplySanctionInput describes a new sanction.
type ApplySanctionInput struct {
	UserID        uint   `json:"user_id"`
	ReservationID *uint  `json:"reservation_id,omitempty"`
	Reason        string `json:"reason"`
	DurationDays  int    `json:"duration_days"`
}

// SanctionGate decides whether a user is blocked and keeps the user's
// blocked_until in step with their sanctions.
type SanctionGate struct {
	// Stacking is config.StackingLatest or config.StackingMax.
	Stacking string
}

// IsBlocked reports whether blocked_until lies strictly after now.
func (SanctionGate) IsBlocked(user *models.User, now time.Time) bool {
	return user.BlockedUntil != nil && user.BlockedUntil.After(now)
}

// Status builds the block view of user at now.
func (g SanctionGate) Status(user *models.User, now time.Time) BlockStatus {
	st := BlockStatus{UserID: user.ID}
	if !g.IsBlocked(user, now) {
		return st
	}
	until := user.BlockedUntil.UTC()
	st.Blocked = true
	st.ExpiresAt = &until
	st.DaysRemaining = int(math.Ceil(until.Sub(now).Hours() / 24))
	return st
}

// Apply creates an active sanction and blocks the user until it expires.
// The user row is locked so concurrent sanctions on one user serialize.
func (g SanctionGate) Apply(ctx context.Context, repos *repository.Repositories, issuer uint, in ApplySanctionInput, now time.Time) (*models.Sanction, error) {
	if in.Reason == "" {
		return nil, models.NewValidationError("reason is required")
	}
	if in.DurationDays < 1 || in.DurationDays > MaxSanctionDays {
		return nil, models.NewValidationError("duration_days must be between 1 and 3650")
	}

	user, err := repos.Users.GetForUpdate(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.ReservationID != nil {
		reservation, err := repos.Reservations.GetByID(ctx, *in.ReservationID)
		if err != nil {
			return nil, err
		}
		if reservation.UserID != user.ID {
			return nil, models.NewValidationError("reservation does not belong to the sanctioned user")
		}
	}

	sanction := &models.Sanction{
		UserID:        user.ID,
		ReservationID: in.ReservationID,
		Reason:        in.Reason,
		StartedAt:     now,
		ExpiresAt:     now.Add(time.Duration(in.DurationDays) * 24 * time.Hour),
		Active:        true,
		IssuedBy:      issuer,
	}
	if err := repos.Sanctions.Create(ctx, sanction); err != nil {
		return nil, err
	}

	until := sanction.ExpiresAt
	if g.Stacking == config.StackingMax && user.BlockedUntil != nil && user.BlockedUntil.After(until) {
		until = user.BlockedUntil.UTC()
	}
	if err := repos.Users.SetBlockedUntil(ctx, user.ID, &until); err != nil {
		return nil, err
	}
	return sanction, nil
}

// Lift deactivates a sanction and re-derives the user's block from the
// sanctions still in force. Lifting an inactive sanction only re-derives.
func (g SanctionGate) Lift(ctx context.Context, repos *repository.Repositories, sanctionID, liftedBy uint, now time.Time) (*models.Sanction, error) {
	sanction, err := repos.Sanctions.GetByID(ctx, sanctionID)
	if err != nil {
		return nil, err
	}
	if _, err := repos.Users.GetForUpdate(ctx, sanction.UserID); err != nil {
		return nil, err
	}
	if _, err := repos.Sanctions.Deactivate(ctx, sanctionID, &liftedBy, now); err != nil {
		return nil, err
	}
	if err := g.Rederive(ctx, repos, sanction.UserID, now); err != nil {
		return nil, err
	}
	return repos.Sanctions.GetByID(ctx, sanctionID)
}

// ExpireUser deactivates the user's expired sanctions and re-derives the
// block. It returns the number of sanctions deactivated.
func (g SanctionGate) ExpireUser(ctx context.Context, repos *repository.Repositories, userID uint, now time.Time) (int64, error) {
	if _, err := repos.Users.GetForUpdate(ctx, userID); err != nil {
		return 0, err
	}
	n, err := repos.Sanctions.DeactivateExpired(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	if err := g.Rederive(ctx, repos, userID, now); err != nil {
		return 0, err
	}
	return n, nil
}

// Rederive sets blocked_until to the latest expiry among the user's
// sanctions in force, or clears it when none remain. The caller holds the
// user row lock.
func (SanctionGate) Rederive(ctx context.Context, repos *repository.Repositories, userID uint, now time.Time) error {
	latest, err := repos.Sanctions.LatestInForce(ctx, userID, now)
	if err != nil {
		return err
	}
	if latest == nil {
		return repos.Users.SetBlockedUntil(ctx, userID, nil)
	}
	until := latest.ExpiresAt.UTC()
	return repos.Users.SetBlockedUntil(ctx, userID, &until)
}
