package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/models"

	"gorm.io/gorm"
)

// SanctionRepository defines persistence operations for sanctions.
type SanctionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Sanction, error)
	Create(ctx context.Context, sanction *models.Sanction) error
	// Deactivate flips an active sanction to inactive and reports whether this call did it.
	Deactivate(ctx context.Context, id uint, liftedBy *uint, at time.Time) (bool, error)
	// LatestInForce returns the in-force sanction with the latest expiry, or nil.
	LatestInForce(ctx context.Context, userID uint, now time.Time) (*models.Sanction, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Sanction, error)
	ListInForce(ctx context.Context, now time.Time) ([]models.Sanction, error)
	UsersWithExpired(ctx context.Context, now time.Time, limit int) ([]uint, error)
	DeactivateExpired(ctx context.Context, userID uint, now time.Time) (int64, error)
	DetachReservations(ctx context.Context, reservationIDs []uint) (int64, error)
	DeleteByUser(ctx context.Context, userID uint) (int64, error)
}

type sanctionRepository struct {
	db *gorm.DB
}

// NewSanctionRepository returns a new SanctionRepository implementation.
func NewSanctionRepository(db *gorm.DB) SanctionRepository {
	return &sanctionRepository{db: db}
}

func (r *sanctionRepository) GetByID(ctx context.Context, id uint) (*models.Sanction, error) {
	var sanction models.Sanction
	if err := r.db.WithContext(ctx).First(&sanction, id).Error; err != nil {
		return nil, notFound(err, "Sanction", id)
	}
	return &sanction, nil
}

func (r *sanctionRepository) Create(ctx context.Context, sanction *models.Sanction) error {
	if err := r.db.WithContext(ctx).Create(sanction).Error; err != nil {
		return fmt.Errorf("create sanction: %w", err)
	}
	return nil
}

func (r *sanctionRepository) Deactivate(ctx context.Context, id uint, liftedBy *uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Sanction{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"active":    false,
			"lifted_at": at,
			"lifted_by": liftedBy,
		})
	if res.Error != nil {
		return false, fmt.Errorf("deactivate sanction: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *sanctionRepository) LatestInForce(ctx context.Context, userID uint, now time.Time) (*models.Sanction, error) {
	var sanction models.Sanction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND expires_at > ?", userID, true, now).
		Order("expires_at DESC").
		First(&sanction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest sanction: %w", err)
	}
	return &sanction, nil
}

func (r *sanctionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Sanction, error) {
	var sanctions []models.Sanction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC, id DESC").
		Find(&sanctions).Error; err != nil {
		return nil, fmt.Errorf("list user sanctions: %w", err)
	}
	return sanctions, nil
}

func (r *sanctionRepository) ListInForce(ctx context.Context, now time.Time) ([]models.Sanction, error) {
	var sanctions []models.Sanction
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("active = ? AND expires_at > ?", true, now).
		Order("started_at DESC, id DESC").
		Find(&sanctions).Error; err != nil {
		return nil, fmt.Errorf("list active sanctions: %w", err)
	}
	return sanctions, nil
}

func (r *sanctionRepository) UsersWithExpired(ctx context.Context, now time.Time, limit int) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Sanction{}).
		Where("active = ? AND expires_at <= ?", true, now).
		Distinct().
		Order("user_id ASC").
		Limit(limit).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list users with expired sanctions: %w", err)
	}
	return ids, nil
}

func (r *sanctionRepository) DeactivateExpired(ctx context.Context, userID uint, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Sanction{}).
		Where("user_id = ? AND active = ? AND expires_at <= ?", userID, true, now).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate expired sanctions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *sanctionRepository) DetachReservations(ctx context.Context, reservationIDs []uint) (int64, error) {
	if len(reservationIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Sanction{}).
		Where("reservation_id IN ?", reservationIDs).
		Update("reservation_id", nil)
	if res.Error != nil {
		return 0, fmt.Errorf("detach sanction reservations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *sanctionRepository) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Sanction{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete user sanctions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
