package service

import (
	"context"
	"log/slog"

	"courtbook/internal/database"
	"courtbook/internal/middleware"
	"courtbook/internal/models"
	"courtbook/internal/observability"
	"courtbook/internal/repository"
)

// CreateSanction applies a sanction and blocks the user.
func (s *BookingService) CreateSanction(ctx context.Context, actor Actor, in ApplySanctionInput) (*models.Sanction, error) {
	var out *models.Sanction
	err := s.mutate(ctx, OpCreateSanction, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		sanction, err := s.gate.Apply(ctx, repos, actor.UserID, in, s.now())
		if err != nil {
			return err
		}
		u.log(
			slog.Uint64("sanction_id", uint64(sanction.ID)),
			slog.Uint64("user_id", uint64(sanction.UserID)),
			slog.Int("duration_days", in.DurationDays),
		)
		out = sanction
		return nil
	})
	return out, err
}

// LiftSanction deactivates a sanction and re-derives the user's block.
func (s *BookingService) LiftSanction(ctx context.Context, actor Actor, sanctionID uint) (*models.Sanction, error) {
	var out *models.Sanction
	err := s.mutate(ctx, OpLiftSanction, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		sanction, err := s.gate.Lift(ctx, repos, sanctionID, actor.UserID, s.now())
		if err != nil {
			return err
		}
		u.log(slog.Uint64("sanction_id", uint64(sanctionID)), slog.Uint64("user_id", uint64(sanction.UserID)))
		out = sanction
		return nil
	})
	return out, err
}

// ListUserSanctions returns every sanction of a user, newest first.
func (s *BookingService) ListUserSanctions(ctx context.Context, actor Actor, userID uint) ([]models.Sanction, error) {
	var out []models.Sanction
	err := s.read(ctx, OpListUserSanctions, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		if err := u.grant.checkOwner(actor, userID); err != nil {
			return err
		}
		if _, err := repos.Users.GetByID(ctx, userID); err != nil {
			return err
		}
		var err error
		out, err = repos.Sanctions.ListByUser(ctx, userID)
		return err
	})
	return out, err
}

// ListActiveSanctions returns the sanctions still in force, newest first.
func (s *BookingService) ListActiveSanctions(ctx context.Context, actor Actor) ([]models.Sanction, error) {
	var out []models.Sanction
	err := s.read(ctx, OpListActiveSanctions, actor, func(ctx context.Context, repos *repository.Repositories, _ *unit) error {
		var err error
		out, err = repos.Sanctions.ListInForce(ctx, s.now())
		return err
	})
	return out, err
}

// CheckBlocked reports whether a user is currently blocked from reserving.
func (s *BookingService) CheckBlocked(ctx context.Context, actor Actor, userID uint) (*BlockStatus, error) {
	var out *BlockStatus
	err := s.read(ctx, OpCheckBlocked, actor, func(ctx context.Context, repos *repository.Repositories, _ *unit) error {
		user, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		st := s.gate.Status(user, s.now())
		out = &st
		return nil
	})
	return out, err
}

// DeleteUser removes a user and everything that references them.
func (s *BookingService) DeleteUser(ctx context.Context, actor Actor, userID uint) (*CascadeReport, error) {
	var out *CascadeReport
	err := s.mutate(ctx, OpDeleteUser, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		if err := u.grant.checkOwner(actor, userID); err != nil {
			return err
		}
		report, err := s.cascade.DeleteUser(ctx, repos, userID)
		if err != nil {
			return err
		}
		u.touch(report.VenueIDs...)
		u.log(
			slog.Uint64("user_id", uint64(userID)),
			slog.Int64("reservations", report.Reservations),
			slog.Int64("slots_released", report.SlotsReleased),
		)
		out = report
		return nil
	})
	return out, err
}

// ExpireSanctions deactivates sanctions whose expiry has passed and
// re-derives each affected user's block, one transaction per user. It
// handles at most limit users and returns the number of sanctions expired.
func (s *BookingService) ExpireSanctions(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = repository.MaxPageSize
	}
	ctx = middleware.WithCorrelationID(ctx, observability.NewCorrelationID())
	userIDs, err := s.uow.Read().Sanctions.UsersWithExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, userID := range userIDs {
		var n int64
		err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
			var err error
			n, err = s.gate.ExpireUser(ctx, repos, userID, s.now())
			return err
		})
		if err != nil {
			err = database.ClassifyError(err)
			if models.IsCode(err, models.CodeNotFound) {
				continue
			}
			observability.RecordOperation(string(OpExpireSanctions), errorCode(err))
			return total, err
		}
		if n > 0 {
			middleware.Logger.InfoContext(ctx, "expired sanctions",
				slog.Uint64("user_id", uint64(userID)),
				slog.Int64("count", n),
			)
		}
		total += int(n)
		observability.SanctionsExpired.Add(float64(n))
	}
	if len(userIDs) > 0 {
		observability.RecordOperation(string(OpExpireSanctions), "")
	}
	return total, nil
}
