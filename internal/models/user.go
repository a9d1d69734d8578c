package models

import "time"

// Roles a user can hold. Lifecycle operations declare which role they require.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

// User represents an authenticated account, either a student or an instructor.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:255;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	AvatarURL    string    `gorm:"size:512" json:"avatar_url"`
	Role         string    `gorm:"size:32;not null;default:student" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsInstructor reports whether the user holds the instructor role.
func (u User) IsInstructor() bool {
	return u.Role == RoleInstructor
}
