package repository

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetForUpdate locks the user row; booking and sanction writes for the
	// same user serialize on it.
	GetForUpdate(ctx context.Context, id uint) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	SetBlockedUntil(ctx context.Context, id uint, until *time.Time) error
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	DeleteProfile(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetForUpdate(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := forUpdate(r.db.WithContext(ctx)).First(&user, id).Error; err != nil {
		return nil, notFound(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepository) SetBlockedUntil(ctx context.Context, id uint, until *time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("blocked_until", until)
	if res.Error != nil {
		return fmt.Errorf("set blocked_until: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (r *userRepository) DeleteProfile(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserProfile{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete profile: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}
