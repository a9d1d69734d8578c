package models

// Status labels derived from assignment state. Labels are view dependent:
// students see missed/overdue where instructors see closed/pending.
const (
	StatusDone     = "done"
	StatusMissed   = "missed"
	StatusClosed   = "closed"
	StatusDueToday = "due_today"
	StatusUpcoming = "upcoming"
	StatusOverdue  = "overdue"
	StatusPending  = "pending"
)

// StatusView selects the audience-specific status vocabulary.
type StatusView int

const (
	// StudentView labels an unreviewed lapsed assignment "overdue" and a
	// closed unsubmitted one "missed".
	StudentView StatusView = iota
	// InstructorView labels the same states "pending" and "closed".
	InstructorView
)

// StatusFor derives the display status of an assignment for the given view.
// The rules form an ordered decision list; earlier rules win. The order is
// load bearing: a submitted assignment is done even when it is also closed,
// and a closed assignment is missed/closed regardless of its deadline.
func (a Assignment) StatusFor(view StatusView, today string) string {
	switch {
	case a.SubmittedCount > 0:
		return StatusDone
	case a.Reviewed:
		if view == InstructorView {
			return StatusClosed
		}
		return StatusMissed
	case a.Deadline == today:
		return StatusDueToday
	case a.Deadline > today:
		return StatusUpcoming
	default:
		if view == InstructorView {
			return StatusPending
		}
		return StatusOverdue
	}
}
