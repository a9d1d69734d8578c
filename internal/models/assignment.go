package models

import (
	"time"

	"gorm.io/datatypes"
)

// DeadlineLayout is the calendar-day format deadlines are stored in.
// Deadlines have no time component; ISO dates compare correctly as strings.
const DeadlineLayout = "2006-01-02"

// Assignment represents a gradable activity posted by an instructor.
type Assignment struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Title          string         `gorm:"size:255;not null" json:"title"`
	Subject        string         `gorm:"size:255;not null" json:"subject"`
	Description    string         `gorm:"type:text" json:"description"`
	Deadline       string         `gorm:"size:10;not null" json:"deadline"`
	Category       string         `gorm:"size:64;default:Assignment" json:"category"`
	Points         int            `gorm:"not null;default:100" json:"points"`
	Attachments    datatypes.JSON `gorm:"type:json" json:"attachments"`
	Reviewed       bool           `gorm:"not null;default:false" json:"reviewed"`
	SubmittedCount int            `gorm:"not null;default:0" json:"submitted_count"`
	TotalStudents  int            `gorm:"not null;default:1" json:"total_students"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Submissions    []Submission   `json:"-"`
}

// Attachment describes a single instructor-provided file reference.
type Attachment struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// IsClosed reports whether the instructor has closed the assignment for submissions.
func (a Assignment) IsClosed() bool {
	return a.Reviewed
}

// AtCapacity reports whether the submission ceiling has been reached.
func (a Assignment) AtCapacity() bool {
	return a.SubmittedCount >= a.TotalStudents
}
