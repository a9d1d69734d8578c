package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/klase-go-api/internal/models"
)

// LifecycleEventFilter narrows audit log queries.
type LifecycleEventFilter struct {
	AssignmentID *uint
	Action       string
	Page         int
	PageSize     int
}

// LifecycleEventRepository persists the assignment transition log.
type LifecycleEventRepository interface {
	Create(ctx context.Context, event *models.LifecycleEvent) error
	List(ctx context.Context, filter LifecycleEventFilter) ([]models.LifecycleEvent, int64, error)
}

type lifecycleEventRepository struct {
	db *gorm.DB
}

// NewLifecycleEventRepository constructs the transition log repository.
func NewLifecycleEventRepository(db *gorm.DB) LifecycleEventRepository {
	return &lifecycleEventRepository{db: db}
}

func (r *lifecycleEventRepository) Create(ctx context.Context, event *models.LifecycleEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *lifecycleEventRepository) List(ctx context.Context, filter LifecycleEventFilter) ([]models.LifecycleEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.LifecycleEvent{})

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var events []models.LifecycleEvent
	if err := query.Order("created_at DESC, id DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
