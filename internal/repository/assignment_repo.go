package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/klase-go-api/internal/models"
)

// Submission conflicts surfaced by RegisterSubmission. The repository owns
// these because the invariants are enforced inside the storage transaction.
var (
	// ErrAssignmentClosed means the instructor already closed the assignment.
	ErrAssignmentClosed = errors.New("assignment closed for submissions")
	// ErrSubmissionExists means this student already submitted this assignment.
	ErrSubmissionExists = errors.New("submission already registered")
	// ErrSubmissionCapacity means the submission ceiling has been reached.
	ErrSubmissionCapacity = errors.New("submission capacity reached")
)

// AssignmentRepository defines persistence operations for assignments.
type AssignmentRepository interface {
	List(ctx context.Context) ([]models.Assignment, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	RegisterSubmission(ctx context.Context, assignmentID, studentID uint) (models.Assignment, error)
	SetReviewed(ctx context.Context, id uint, reviewed bool) (models.Assignment, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) List(ctx context.Context) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// RegisterSubmission inserts the per-student submission row and bumps the
// aggregate count in one transaction. The count update is conditional on
// `reviewed = false AND submitted_count < total_students`, so two concurrent
// submissions cannot push the count past the ceiling: the losing transaction
// sees zero affected rows and rolls back.
func (r *assignmentRepository) RegisterSubmission(ctx context.Context, assignmentID, studentID uint) (models.Assignment, error) {
	var result models.Assignment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assignment models.Assignment
		if err := tx.First(&assignment, assignmentID).Error; err != nil {
			return err
		}

		if assignment.Reviewed {
			return ErrAssignmentClosed
		}

		var existing int64
		if err := tx.Model(&models.Submission{}).
			Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrSubmissionExists
		}

		if err := tx.Create(&models.Submission{AssignmentID: assignmentID, StudentID: studentID}).Error; err != nil {
			return err
		}

		update := tx.Model(&models.Assignment{}).
			Where("id = ? AND reviewed = ? AND submitted_count < total_students", assignmentID, false).
			UpdateColumn("submitted_count", gorm.Expr("submitted_count + 1"))
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			// The guard failed between the initial read and the update.
			if assignment.AtCapacity() {
				return ErrSubmissionCapacity
			}
			return ErrAssignmentClosed
		}

		return tx.First(&result, assignmentID).Error
	})
	if err != nil {
		return models.Assignment{}, err
	}

	return result, nil
}

func (r *assignmentRepository) SetReviewed(ctx context.Context, id uint, reviewed bool) (models.Assignment, error) {
	var result models.Assignment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assignment models.Assignment
		if err := tx.First(&assignment, id).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Assignment{}).
			Where("id = ?", id).
			UpdateColumn("reviewed", reviewed).Error; err != nil {
			return err
		}

		return tx.First(&result, id).Error
	})
	if err != nil {
		return models.Assignment{}, err
	}

	return result, nil
}
