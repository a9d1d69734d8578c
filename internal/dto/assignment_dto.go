package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/klase-go-api/internal/models"
)

// AssignmentCreateRequest describes the payload for posting a new assignment.
type AssignmentCreateRequest struct {
	Title         string              `form:"title" json:"title" validate:"required,min=3"`
	Subject       string              `form:"subject" json:"subject" validate:"required,min=2"`
	Description   string              `form:"description" json:"description"`
	Deadline      string              `form:"deadline" json:"deadline" validate:"required,datetime=2006-01-02"`
	Category      string              `form:"category" json:"category"`
	Points        int                 `form:"points" json:"points" validate:"omitempty,min=0"`
	TotalStudents int                 `form:"total_students" json:"total_students" validate:"omitempty,min=1"`
	Attachments   []models.Attachment `json:"attachments"`
}

// AssignmentResponse is the serialized representation returned to API clients.
// Status is derived for the requesting role's view at response time.
type AssignmentResponse struct {
	ID             uint                `json:"id"`
	Title          string              `json:"title"`
	Subject        string              `json:"subject"`
	Description    string              `json:"description"`
	Deadline       string              `json:"deadline"`
	Category       string              `json:"category"`
	Points         int                 `json:"points"`
	Attachments    []models.Attachment `json:"attachments"`
	Reviewed       bool                `json:"reviewed"`
	SubmittedCount int                 `json:"submitted_count"`
	TotalStudents  int                 `json:"total_students"`
	Status         string              `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NewAssignmentResponse converts a model into a DTO, deriving the status for
// the supplied view and calendar day.
func NewAssignmentResponse(model models.Assignment, view models.StatusView, today string) AssignmentResponse {
	attachments := []models.Attachment{}
	if len(model.Attachments) > 0 {
		_ = json.Unmarshal(model.Attachments, &attachments)
	}

	return AssignmentResponse{
		ID:             model.ID,
		Title:          model.Title,
		Subject:        model.Subject,
		Description:    model.Description,
		Deadline:       model.Deadline,
		Category:       model.Category,
		Points:         model.Points,
		Attachments:    attachments,
		Reviewed:       model.Reviewed,
		SubmittedCount: model.SubmittedCount,
		TotalStudents:  model.TotalStudents,
		Status:         model.StatusFor(view, today),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment, view models.StatusView, today string) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment, view, today))
	}

	return responses
}
