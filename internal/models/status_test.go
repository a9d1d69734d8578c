package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusForDecisionOrder(t *testing.T) {
	today := "2025-10-20"

	cases := []struct {
		name       string
		assignment Assignment
		student    string
		instructor string
	}{
		{
			name:       "submitted wins over everything",
			assignment: Assignment{Reviewed: true, SubmittedCount: 2, TotalStudents: 5, Deadline: "2025-01-01"},
			student:    StatusDone,
			instructor: StatusDone,
		},
		{
			name:       "closed without submissions",
			assignment: Assignment{Reviewed: true, SubmittedCount: 0, TotalStudents: 5, Deadline: "2025-12-01"},
			student:    StatusMissed,
			instructor: StatusClosed,
		},
		{
			name:       "deadline today classifies as due today, not upcoming",
			assignment: Assignment{Deadline: "2025-10-20", TotalStudents: 1},
			student:    StatusDueToday,
			instructor: StatusDueToday,
		},
		{
			name:       "future deadline",
			assignment: Assignment{Deadline: "2025-10-21", TotalStudents: 1},
			student:    StatusUpcoming,
			instructor: StatusUpcoming,
		},
		{
			name:       "lapsed deadline not reviewed not submitted",
			assignment: Assignment{Deadline: "2025-10-19", TotalStudents: 1},
			student:    StatusOverdue,
			instructor: StatusPending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.student, tc.assignment.StatusFor(StudentView, today))
			require.Equal(t, tc.instructor, tc.assignment.StatusFor(InstructorView, today))
		})
	}
}

func TestStatusForIsTotal(t *testing.T) {
	// Every combination of reviewed/submitted/deadline position must map to
	// exactly one label for each view.
	deadlines := []string{"2025-10-19", "2025-10-20", "2025-10-21"}
	today := "2025-10-20"

	for _, reviewed := range []bool{false, true} {
		for _, submitted := range []int{0, 1} {
			for _, deadline := range deadlines {
				a := Assignment{Reviewed: reviewed, SubmittedCount: submitted, TotalStudents: 2, Deadline: deadline}
				require.NotEmpty(t, a.StatusFor(StudentView, today))
				require.NotEmpty(t, a.StatusFor(InstructorView, today))
			}
		}
	}
}

func TestAssignmentCapacityAndClosedHelpers(t *testing.T) {
	a := Assignment{SubmittedCount: 1, TotalStudents: 1}
	require.True(t, a.AtCapacity())
	require.False(t, a.IsClosed())

	a.Reviewed = true
	require.True(t, a.IsClosed())
}
