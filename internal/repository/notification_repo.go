package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/klase-go-api/internal/models"
)

// NotificationRepository handles persistence for per-audience feed entries.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByAudience(ctx context.Context, audience string, limit, offset int) ([]models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) ListByAudience(ctx context.Context, audience string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var notifications []models.Notification
	if err := r.db.WithContext(ctx).
		Where("audience = ?", audience).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}

	return notifications, nil
}
