package dto

import (
	"time"

	"github.com/noah-isme/klase-go-api/internal/models"
)

// NotificationResponse is a single feed entry as returned to clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	Audience  string    `json:"audience"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		Audience:  model.Audience,
		Type:      model.Type,
		Title:     model.Title,
		Message:   model.Message,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of models into DTOs.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, NewNotificationResponse(notification))
	}

	return responses
}

// LifecycleEventResponse is a single transition from the assignment audit log.
type LifecycleEventResponse struct {
	ID           uint                   `json:"id"`
	AssignmentID uint                   `json:"assignment_id"`
	Action       string                 `json:"action"`
	ActorID      uint                   `json:"actor_id"`
	ActorRole    string                 `json:"actor_role"`
	Metadata     map[string]interface{} `json:"metadata"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewLifecycleEventResponse converts a model into a DTO.
func NewLifecycleEventResponse(model models.LifecycleEvent) LifecycleEventResponse {
	return LifecycleEventResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		Action:       model.Action,
		ActorID:      model.ActorID,
		ActorRole:    model.ActorRole,
		Metadata:     model.Metadata,
		CreatedAt:    model.CreatedAt,
	}
}
