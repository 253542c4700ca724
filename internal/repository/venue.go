package repository

import (
	"context"
	"fmt"

	"courtbook/internal/models"

	"gorm.io/gorm"
)

// VenueRepository defines persistence operations for venues.
type VenueRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Venue, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Venue, error)
	List(ctx context.Context, sportType string, limit, offset int) ([]models.Venue, error)
	Create(ctx context.Context, venue *models.Venue) error
	Update(ctx context.Context, venue *models.Venue) error
	Delete(ctx context.Context, id uint) error
}

type venueRepository struct {
	db *gorm.DB
}

// NewVenueRepository returns a new VenueRepository implementation.
func NewVenueRepository(db *gorm.DB) VenueRepository {
	return &venueRepository{db: db}
}

func (r *venueRepository) GetByID(ctx context.Context, id uint) (*models.Venue, error) {
	var venue models.Venue
	if err := r.db.WithContext(ctx).First(&venue, id).Error; err != nil {
		return nil, notFound(err, "Venue", id)
	}
	return &venue, nil
}

func (r *venueRepository) GetForUpdate(ctx context.Context, id uint) (*models.Venue, error) {
	var venue models.Venue
	if err := forUpdate(r.db.WithContext(ctx)).First(&venue, id).Error; err != nil {
		return nil, notFound(err, "Venue", id)
	}
	return &venue, nil
}

func (r *venueRepository) List(ctx context.Context, sportType string, limit, offset int) ([]models.Venue, error) {
	var venues []models.Venue
	q := r.db.WithContext(ctx).Order("name ASC, id ASC").Limit(limit).Offset(offset)
	if sportType != "" {
		q = q.Where("sport_type = ?", sportType)
	}
	if err := q.Find(&venues).Error; err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	return venues, nil
}

func (r *venueRepository) Create(ctx context.Context, venue *models.Venue) error {
	if err := r.db.WithContext(ctx).Create(venue).Error; err != nil {
		return fmt.Errorf("create venue: %w", err)
	}
	return nil
}

func (r *venueRepository) Update(ctx context.Context, venue *models.Venue) error {
	res := r.db.WithContext(ctx).Model(&models.Venue{}).Where("id = ?", venue.ID).Updates(map[string]interface{}{
		"name":        venue.Name,
		"address":     venue.Address,
		"latitude":    venue.Latitude,
		"longitude":   venue.Longitude,
		"sport_type":  venue.SportType,
		"description": venue.Description,
	})
	if res.Error != nil {
		return fmt.Errorf("update venue: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Venue", venue.ID)
	}
	return nil
}

func (r *venueRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Venue{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete venue: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Venue", id)
	}
	return nil
}
