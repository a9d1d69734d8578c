package models

import "time"

// Notification audiences. Each feed is scoped to one audience.
const (
	AudienceStudent    = "student"
	AudienceInstructor = "instructor"
)

// Notification event types produced by assignment lifecycle transitions.
const (
	NotificationTypeNew        = "new"
	NotificationTypeClosed     = "closed"
	NotificationTypeReopened   = "reopened"
	NotificationTypeSubmission = "submission"
	NotificationTypeInfo       = "info"
)

// Notification is an immutable feed entry derived from an assignment state
// change. Entries are only ever appended and are read newest first.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Audience  string    `gorm:"size:32;not null;index" json:"audience"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
