package repository

import (
	"context"
	"fmt"

	"courtbook/internal/models"

	"gorm.io/gorm"
)

// CommentRepository covers the comment rows the booking cascades touch.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	DeleteByUser(ctx context.Context, userID uint) (int64, error)
	DeleteByVenue(ctx context.Context, venueID uint) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository returns a new CommentRepository implementation.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (r *commentRepository) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete user comments: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *commentRepository) DeleteByVenue(ctx context.Context, venueID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("venue_id = ?", venueID).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete venue comments: %w", res.Error)
	}
	return res.RowsAffected, nil
}
