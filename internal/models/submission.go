package models

import "time"

// Submission records that one student completed one assignment. The unique
// index makes the submitted count the cardinality of a per-student set rather
// than a blind counter, so repeated submits by the same student cannot inflate it.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_submission_once" json:"assignment_id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_submission_once" json:"student_id"`
	CreatedAt    time.Time  `json:"created_at"`
	Assignment   Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
