package repository

import (
	"context"
	"fmt"

	"courtbook/internal/models"

	"gorm.io/gorm"
)

// SlotRepository defines persistence operations for slots.
type SlotRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Slot, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Slot, error)
	ListByVenue(ctx context.Context, venueID uint, date string) ([]models.Slot, error)
	IDsByVenue(ctx context.Context, venueID uint) ([]uint, error)
	VenueIDs(ctx context.Context, slotIDs []uint) ([]uint, error)
	Create(ctx context.Context, slot *models.Slot) error
	UpdateWindow(ctx context.Context, id uint, w models.Window) error
	// ClaimAvailable flips an available slot to reserved and reports
	// whether this call performed the flip.
	ClaimAvailable(ctx context.Context, id uint) (bool, error)
	SetStatus(ctx context.Context, id uint, status models.SlotStatus) error
	SetStatusBulk(ctx context.Context, ids []uint, status models.SlotStatus) (int64, error)
	Delete(ctx context.Context, id uint) error
	DeleteByVenue(ctx context.Context, venueID uint) (int64, error)
}

type slotRepository struct {
	db *gorm.DB
}

// NewSlotRepository returns a new SlotRepository implementation.
func NewSlotRepository(db *gorm.DB) SlotRepository {
	return &slotRepository{db: db}
}

func (r *slotRepository) GetByID(ctx context.Context, id uint) (*models.Slot, error) {
	var slot models.Slot
	if err := r.db.WithContext(ctx).First(&slot, id).Error; err != nil {
		return nil, notFound(err, "Slot", id)
	}
	return &slot, nil
}

func (r *slotRepository) GetForUpdate(ctx context.Context, id uint) (*models.Slot, error) {
	var slot models.Slot
	if err := forUpdate(r.db.WithContext(ctx)).First(&slot, id).Error; err != nil {
		return nil, notFound(err, "Slot", id)
	}
	return &slot, nil
}

func (r *slotRepository) ListByVenue(ctx context.Context, venueID uint, date string) ([]models.Slot, error) {
	var slots []models.Slot
	q := r.db.WithContext(ctx).Where("venue_id = ?", venueID)
	if date != "" {
		q = q.Where("date = ?", date)
	}
	if err := q.Order("date ASC, start_time ASC, id ASC").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (r *slotRepository) IDsByVenue(ctx context.Context, venueID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Slot{}).
		Where("venue_id = ?", venueID).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list slot ids: %w", err)
	}
	return ids, nil
}

func (r *slotRepository) VenueIDs(ctx context.Context, slotIDs []uint) ([]uint, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Slot{}).
		Where("id IN ?", slotIDs).
		Distinct().
		Pluck("venue_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list slot venues: %w", err)
	}
	return ids, nil
}

func (r *slotRepository) Create(ctx context.Context, slot *models.Slot) error {
	if err := r.db.WithContext(ctx).Create(slot).Error; err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

func (r *slotRepository) UpdateWindow(ctx context.Context, id uint, w models.Window) error {
	res := r.db.WithContext(ctx).Model(&models.Slot{}).Where("id = ?", id).Updates(map[string]interface{}{
		"date":       w.Date,
		"start_time": w.Start,
		"end_time":   w.End,
	})
	if res.Error != nil {
		return fmt.Errorf("update slot window: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Slot", id)
	}
	return nil
}

func (r *slotRepository) ClaimAvailable(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Slot{}).
		Where("id = ? AND status = ?", id, models.SlotAvailable).
		Update("status", models.SlotReserved)
	if res.Error != nil {
		return false, fmt.Errorf("claim slot: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *slotRepository) SetStatus(ctx context.Context, id uint, status models.SlotStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Slot{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("set slot status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Slot", id)
	}
	return nil
}

func (r *slotRepository) SetStatusBulk(ctx context.Context, ids []uint, status models.SlotStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Slot{}).Where("id IN ?", ids).Update("status", status)
	if res.Error != nil {
		return 0, fmt.Errorf("set slot statuses: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *slotRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Slot{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete slot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Slot", id)
	}
	return nil
}

func (r *slotRepository) DeleteByVenue(ctx context.Context, venueID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("venue_id = ?", venueID).Delete(&models.Slot{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete venue slots: %w", res.Error)
	}
	return res.RowsAffected, nil
}
