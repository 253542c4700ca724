package repository

import (
	"context"
	"fmt"

	"courtbook/internal/models"

	"gorm.io/gorm"
)

// ReservationRepository defines persistence operations for reservations.
type ReservationRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Reservation, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Reservation, error)
	Create(ctx context.Context, reservation *models.Reservation) error
	// Transition applies updates only while the reservation is still in
	// status from, and reports whether a row changed.
	Transition(ctx context.Context, id uint, from models.ReservationStatus, updates map[string]interface{}) (bool, error)
	ActiveSlotsForUserOnDate(ctx context.Context, userID uint, date string) ([]models.Slot, error)
	ActiveSlotIDs(ctx context.Context, slotIDs []uint) (map[uint]bool, error)
	ActiveSlotIDsByUser(ctx context.Context, userID uint) ([]uint, error)
	CountBySlot(ctx context.Context, slotID uint, activeOnly bool) (int64, error)
	IDsBySlots(ctx context.Context, slotIDs []uint) ([]uint, error)
	IDsByUser(ctx context.Context, userID uint) ([]uint, error)
	List(ctx context.Context, filter ReservationFilter) ([]models.Reservation, int64, error)
	DeleteBySlots(ctx context.Context, slotIDs []uint) (int64, error)
	DeleteByUser(ctx context.Context, userID uint) (int64, error)
}

type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository returns a new ReservationRepository implementation.
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) GetByID(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).
		Preload("Slot").
		Preload("Slot.Venue").
		First(&reservation, id).Error; err != nil {
		return nil, notFound(err, "Reservation", id)
	}
	return &reservation, nil
}

func (r *reservationRepository) GetForUpdate(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := forUpdate(r.db.WithContext(ctx)).First(&reservation, id).Error; err != nil {
		return nil, notFound(err, "Reservation", id)
	}
	return &reservation, nil
}

func (r *reservationRepository) Create(ctx context.Context, reservation *models.Reservation) error {
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *reservationRepository) Transition(ctx context.Context, id uint, from models.ReservationStatus, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("transition reservation: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *reservationRepository) ActiveSlotsForUserOnDate(ctx context.Context, userID uint, date string) ([]models.Slot, error) {
	var slots []models.Slot
	if err := r.db.WithContext(ctx).Model(&models.Slot{}).
		Joins("JOIN reservations ON reservations.slot_id = slots.id").
		Where("reservations.user_id = ?", userID).
		Where("reservations.status IN ?", models.ActiveReservationStatuses).
		Where("slots.date = ?", date).
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list active slots for user: %w", err)
	}
	return slots, nil
}

func (r *reservationRepository) ActiveSlotIDs(ctx context.Context, slotIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if len(slotIDs) == 0 {
		return out, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("slot_id IN ?", slotIDs).
		Where("status IN ?", models.ActiveReservationStatuses).
		Pluck("slot_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list active slot ids: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *reservationRepository) ActiveSlotIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("user_id = ?", userID).
		Where("status IN ?", models.ActiveReservationStatuses).
		Pluck("slot_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list user active slot ids: %w", err)
	}
	return ids, nil
}

func (r *reservationRepository) CountBySlot(ctx context.Context, slotID uint, activeOnly bool) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Reservation{}).Where("slot_id = ?", slotID)
	if activeOnly {
		q = q.Where("status IN ?", models.ActiveReservationStatuses)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count slot reservations: %w", err)
	}
	return n, nil
}

func (r *reservationRepository) IDsBySlots(ctx context.Context, slotIDs []uint) ([]uint, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("slot_id IN ?", slotIDs).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list slot reservation ids: %w", err)
	}
	return ids, nil
}

func (r *reservationRepository) IDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("user_id = ?", userID).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list user reservation ids: %w", err)
	}
	return ids, nil
}

func (r *reservationRepository) List(ctx context.Context, filter ReservationFilter) ([]models.Reservation, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Joins("JOIN slots ON slots.id = reservations.slot_id").
		Scopes(filter.Scopes()...)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	var reservations []models.Reservation
	if err := base.Session(&gorm.Session{}).
		Select("reservations.*").
		Preload("Slot").
		Preload("Slot.Venue").
		Order("slots.date DESC, slots.start_time DESC, reservations.id DESC").
		Scopes(filter.Page()).
		Find(&reservations).Error; err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, total, nil
}

func (r *reservationRepository) DeleteBySlots(ctx context.Context, slotIDs []uint) (int64, error) {
	if len(slotIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("slot_id IN ?", slotIDs).Delete(&models.Reservation{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete slot reservations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *reservationRepository) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Reservation{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete user reservations: %w", res.Error)
	}
	return res.RowsAffected, nil
}
