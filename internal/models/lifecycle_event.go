package models

import (
	"time"

	"gorm.io/datatypes"
)

// Lifecycle actions recorded for every assignment state transition.
const (
	ActionCreated   = "created"
	ActionSubmitted = "submitted"
	ActionClosed    = "closed"
	ActionReopened  = "reopened"
)

// LifecycleEvent is the append-only log of assignment state transitions.
// Both audience feeds are projected from this single record, so the student
// and instructor notifications for one transition cannot drift apart.
type LifecycleEvent struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	AssignmentID uint              `gorm:"not null;index" json:"assignment_id"`
	Action       string            `gorm:"size:32;not null" json:"action"`
	ActorID      uint              `gorm:"not null" json:"actor_id"`
	ActorRole    string            `gorm:"size:32;not null" json:"actor_role"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}
