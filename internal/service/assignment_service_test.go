package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/klase-go-api/internal/dto"
	"github.com/noah-isme/klase-go-api/internal/models"
	"github.com/noah-isme/klase-go-api/internal/repository"
)

type memoryAssignmentRepo struct {
	assignments map[uint]models.Assignment
	submissions map[uint]map[uint]struct{}
	nextID      uint
}

func newMemoryAssignmentRepo() *memoryAssignmentRepo {
	return &memoryAssignmentRepo{
		assignments: make(map[uint]models.Assignment),
		submissions: make(map[uint]map[uint]struct{}),
		nextID:      1,
	}
}

func (m *memoryAssignmentRepo) List(ctx context.Context) ([]models.Assignment, error) {
	results := make([]models.Assignment, 0, len(m.assignments))
	for _, assignment := range m.assignments {
		results = append(results, assignment)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID > results[j].ID })
	return results, nil
}

func (m *memoryAssignmentRepo) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, ok := m.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (m *memoryAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.ID = m.nextID
	assignment.CreatedAt = time.Now()
	assignment.UpdatedAt = time.Now()
	m.assignments[m.nextID] = *assignment
	m.nextID++
	return nil
}

func (m *memoryAssignmentRepo) RegisterSubmission(ctx context.Context, assignmentID, studentID uint) (models.Assignment, error) {
	assignment, ok := m.assignments[assignmentID]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	if assignment.Reviewed {
		return models.Assignment{}, repository.ErrAssignmentClosed
	}
	students := m.submissions[assignmentID]
	if students == nil {
		students = make(map[uint]struct{})
		m.submissions[assignmentID] = students
	}
	if _, exists := students[studentID]; exists {
		return models.Assignment{}, repository.ErrSubmissionExists
	}
	if assignment.SubmittedCount >= assignment.TotalStudents {
		return models.Assignment{}, repository.ErrSubmissionCapacity
	}
	students[studentID] = struct{}{}
	assignment.SubmittedCount++
	m.assignments[assignmentID] = assignment
	return assignment, nil
}

func (m *memoryAssignmentRepo) SetReviewed(ctx context.Context, id uint, reviewed bool) (models.Assignment, error) {
	assignment, ok := m.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	assignment.Reviewed = reviewed
	m.assignments[id] = assignment
	return assignment, nil
}

type memoryEventRepo struct {
	events []models.LifecycleEvent
}

func (m *memoryEventRepo) Create(ctx context.Context, event *models.LifecycleEvent) error {
	event.ID = uint(len(m.events) + 1)
	event.CreatedAt = time.Now()
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryEventRepo) List(ctx context.Context, filter repository.LifecycleEventFilter) ([]models.LifecycleEvent, int64, error) {
	filtered := make([]models.LifecycleEvent, 0, len(m.events))
	for _, event := range m.events {
		if filter.AssignmentID != nil && event.AssignmentID != *filter.AssignmentID {
			continue
		}
		if filter.Action != "" && event.Action != filter.Action {
			continue
		}
		filtered = append(filtered, event)
	}
	return filtered, int64(len(filtered)), nil
}

// capturingFeed records appended entries instead of broadcasting them.
type capturingFeed struct {
	entries []models.Notification
}

func (f *capturingFeed) Append(ctx context.Context, notification models.Notification) (dto.NotificationResponse, error) {
	f.entries = append(f.entries, notification)
	return dto.NotificationResponse{
		Audience: notification.Audience,
		Type:     notification.Type,
		Title:    notification.Title,
		Message:  notification.Message,
	}, nil
}

func (f *capturingFeed) List(ctx context.Context, audience string, limit, offset int) ([]dto.NotificationResponse, error) {
	return nil, nil
}

func (f *capturingFeed) Subscribe(ctx context.Context, audience string) ([]dto.NotificationResponse, <-chan dto.NotificationResponse, func()) {
	ch := make(chan dto.NotificationResponse)
	return nil, ch, func() { close(ch) }
}

func (f *capturingFeed) Start(ctx context.Context) {}

func (f *capturingFeed) forAudience(audience string) []models.Notification {
	matched := make([]models.Notification, 0, len(f.entries))
	for _, entry := range f.entries {
		if entry.Audience == audience {
			matched = append(matched, entry)
		}
	}
	return matched
}

type stubUploader struct {
	uploads int
}

func (s *stubUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	s.uploads++
	return "https://example.com/" + name, nil
}

func newTestAssignmentService(repo repository.AssignmentRepository, events repository.LifecycleEventRepository, feed FeedService) AssignmentService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewAssignmentService(repo, events, feed, validate, &stubUploader{}, testLogger())
}

func instructorActor() Actor { return Actor{ID: 1, Role: models.RoleInstructor} }
func studentActor(id uint) Actor {
	return Actor{ID: id, Role: models.RoleStudent}
}

func futureDeadline() string {
	return time.Now().Add(14 * 24 * time.Hour).Format(models.DeadlineLayout)
}

func TestAssignmentServiceCreateNotifiesBothAudiences(t *testing.T) {
	repo := newMemoryAssignmentRepo()
	events := &memoryEventRepo{}
	feed := &capturingFeed{}
	svc := newTestAssignmentService(repo, events, feed)

	created, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:    "Graph Theory",
		Subject:  "Mathematics",
		Deadline: futureDeadline(),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "Assignment", created.Category)
	require.Equal(t, 100, created.Points)
	require.Equal(t, 1, created.TotalStudents)
	require.Equal(t, models.StatusUpcoming, created.Status)

	require.Len(t, events.events, 1)
	require.Equal(t, models.ActionCreated, events.events[0].Action)

	studentEntries := feed.forAudience(models.AudienceStudent)
	require.Len(t, studentEntries, 1)
	require.Equal(t, models.NotificationTypeNew, studentEntries[0].Type)
	require.Equal(t, "New activity posted", studentEntries[0].Title)
	require.Equal(t, "Graph Theory (Mathematics)", studentEntries[0].Message)

	instructorEntries := feed.forAudience(models.AudienceInstructor)
	require.Len(t, instructorEntries, 1)
	require.Equal(t, models.NotificationTypeInfo, instructorEntries[0].Type)
	require.Equal(t, "You posted: Graph Theory", instructorEntries[0].Message)
}

func TestAssignmentServiceCreateRequiresInstructor(t *testing.T) {
	svc := newTestAssignmentService(newMemoryAssignmentRepo(), &memoryEventRepo{}, &capturingFeed{})

	_, err := svc.Create(context.Background(), studentActor(7), dto.AssignmentCreateRequest{
		Title:    "Sorting",
		Subject:  "CS",
		Deadline: futureDeadline(),
	}, nil)
	require.ErrorIs(t, err, ErrRoleRequired)
}

func TestAssignmentServiceCreateRejectsInvalidDeadline(t *testing.T) {
	svc := newTestAssignmentService(newMemoryAssignmentRepo(), &memoryEventRepo{}, &capturingFeed{})

	_, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:    "Sorting",
		Subject:  "CS",
		Deadline: "31-12-2026",
	}, nil)
	require.Error(t, err)
}

func TestAssignmentServiceCreateUploadsAttachment(t *testing.T) {
	repo := newMemoryAssignmentRepo()
	uploader := &stubUploader{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAssignmentService(repo, &memoryEventRepo{}, &capturingFeed{}, validate, uploader, testLogger())

	fh := newTestFileHeader(t, "rubric.pdf", []byte("%PDF-1.4 test"))

	created, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:    "Essay",
		Subject:  "History",
		Deadline: futureDeadline(),
	}, fh)
	require.NoError(t, err)
	require.Equal(t, 1, uploader.uploads)
	require.Len(t, created.Attachments, 1)
	require.Equal(t, "rubric.pdf", created.Attachments[0].Name)
	require.Equal(t, "https://example.com/rubric.pdf", created.Attachments[0].URL)
}

func TestAssignmentServiceCreateWithFileButNoUploader(t *testing.T) {
	repo := newMemoryAssignmentRepo()
	feed := &capturingFeed{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAssignmentService(repo, &memoryEventRepo{}, feed, validate, nil, testLogger())

	fh := newTestFileHeader(t, "rubric.pdf", []byte("%PDF-1.4 test"))

	_, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:    "Essay",
		Subject:  "History",
		Deadline: futureDeadline(),
	}, fh)
	require.ErrorIs(t, err, ErrUploadsNotConfigured)

	// nothing persisted, nothing announced
	stored, listErr := repo.List(context.Background())
	require.NoError(t, listErr)
	require.Empty(t, stored)
	require.Empty(t, feed.entries)

	// file-less creates still work without an upload backend
	created, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:    "Essay",
		Subject:  "History",
		Deadline: futureDeadline(),
	}, nil)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
}

func TestAssignmentServiceSubmitIncrementsAndNotifiesInstructor(t *testing.T) {
	repo := newMemoryAssignmentRepo()
	feed := &capturingFeed{}
	svc := newTestAssignmentService(repo, &memoryEventRepo{}, feed)

	created, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:         "Lab Report",
		Subject:       "Physics",
		Deadline:      futureDeadline(),
		TotalStudents: 2,
	}, nil)
	require.NoError(t, err)

	submitted, err := svc.Submit(context.Background(), studentActor(9), created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, submitted.SubmittedCount)
	require.Equal(t, models.StatusDone, submitted.Status)

	entries := feed.forAudience(models.AudienceInstructor)
	require.Len(t, entries, 2) // creation ack plus the submission
	last := entries[len(entries)-1]
	require.Equal(t, models.NotificationTypeSubmission, last.Type)
	require.Equal(t, "A student submitted: Lab Report", last.Message)
}

func TestAssignmentServiceSubmitDuplicateStudent(t *testing.T) {
	repo := newMemoryAssignmentRepo()
	feed := &capturingFeed{}
	svc := newTestAssignmentService(repo, &memoryEventRepo{}, feed)

	created, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:         "Quiz",
		Subject:       "CS",
		Deadline:      futureDeadline(),
		TotalStudents: 5,
	}, nil)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), studentActor(3), created.ID)
	require.NoError(t, err)

	before := len(feed.entries)
	_, err = svc.Submit(context.Background(), studentActor(3), created.ID)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Len(t, feed.entries, before)
}

func TestAssignmentServiceSubmitClosed(t *testing.T) {
	repo := newMemoryAssignmentRepo()
	feed := &capturingFeed{}
	svc := newTestAssignmentService(repo, &memoryEventRepo{}, feed)

	created, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:    "Final Project",
		Subject:  "CS",
		Deadline: futureDeadline(),
	}, nil)
	require.NoError(t, err)

	_, err = svc.ToggleReview(context.Background(), instructorActor(), created.ID)
	require.NoError(t, err)

	before := len(feed.entries)
	_, err = svc.Submit(context.Background(), studentActor(4), created.ID)
	require.ErrorIs(t, err, ErrAssignmentClosed)
	require.Len(t, feed.entries, before)
}

func TestAssignmentServiceSubmitCapacity(t *testing.T) {
	repo := newMemoryAssignmentRepo()
	svc := newTestAssignmentService(repo, &memoryEventRepo{}, &capturingFeed{})

	created, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:         "Worksheet",
		Subject:       "CS",
		Deadline:      futureDeadline(),
		TotalStudents: 1,
	}, nil)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), studentActor(1), created.ID)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), studentActor(2), created.ID)
	require.ErrorIs(t, err, ErrSubmissionCapacity)
}

func TestAssignmentServiceSubmitRequiresStudent(t *testing.T) {
	svc := newTestAssignmentService(newMemoryAssignmentRepo(), &memoryEventRepo{}, &capturingFeed{})

	_, err := svc.Submit(context.Background(), instructorActor(), 1)
	require.ErrorIs(t, err, ErrRoleRequired)
}

func TestAssignmentServiceSubmitMissing(t *testing.T) {
	svc := newTestAssignmentService(newMemoryAssignmentRepo(), &memoryEventRepo{}, &capturingFeed{})

	_, err := svc.Submit(context.Background(), studentActor(2), 42)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestAssignmentServiceToggleReviewProjectsBothFeeds(t *testing.T) {
	repo := newMemoryAssignmentRepo()
	events := &memoryEventRepo{}
	feed := &capturingFeed{}
	svc := newTestAssignmentService(repo, events, feed)

	created, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:    "Homework 3",
		Subject:  "Math",
		Deadline: futureDeadline(),
	}, nil)
	require.NoError(t, err)

	closed, err := svc.ToggleReview(context.Background(), instructorActor(), created.ID)
	require.NoError(t, err)
	require.True(t, closed.Reviewed)
	require.Equal(t, models.StatusClosed, closed.Status)

	studentEntries := feed.forAudience(models.AudienceStudent)
	require.Equal(t, models.NotificationTypeClosed, studentEntries[len(studentEntries)-1].Type)
	require.Equal(t, "Activity closed", studentEntries[len(studentEntries)-1].Title)

	reopened, err := svc.ToggleReview(context.Background(), instructorActor(), created.ID)
	require.NoError(t, err)
	require.False(t, reopened.Reviewed)

	instructorEntries := feed.forAudience(models.AudienceInstructor)
	require.Equal(t, "You reopened an activity", instructorEntries[len(instructorEntries)-1].Title)

	actions := make([]string, 0, len(events.events))
	for _, event := range events.events {
		actions = append(actions, event.Action)
	}
	require.Equal(t, []string{models.ActionCreated, models.ActionClosed, models.ActionReopened}, actions)
}

func TestAssignmentServiceEventsRequireInstructor(t *testing.T) {
	svc := newTestAssignmentService(newMemoryAssignmentRepo(), &memoryEventRepo{}, &capturingFeed{})

	_, _, err := svc.Events(context.Background(), studentActor(1), repository.LifecycleEventFilter{})
	require.ErrorIs(t, err, ErrRoleRequired)
}

func TestAssignmentServiceEventsFilterByAction(t *testing.T) {
	repo := newMemoryAssignmentRepo()
	events := &memoryEventRepo{}
	svc := newTestAssignmentService(repo, events, &capturingFeed{})

	created, err := svc.Create(context.Background(), instructorActor(), dto.AssignmentCreateRequest{
		Title:    "Reading",
		Subject:  "Literature",
		Deadline: futureDeadline(),
	}, nil)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), studentActor(5), created.ID)
	require.NoError(t, err)

	results, total, err := svc.Events(context.Background(), instructorActor(), repository.LifecycleEventFilter{
		AssignmentID: &created.ID,
		Action:       models.ActionSubmitted,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, results, 1)
	require.Equal(t, models.ActionSubmitted, results[0].Action)
}

func TestAssignmentServiceGetMissing(t *testing.T) {
	svc := newTestAssignmentService(newMemoryAssignmentRepo(), &memoryEventRepo{}, &capturingFeed{})

	_, err := svc.Get(context.Background(), studentActor(1), 99)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func newTestFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(int64(len(content))+1024))
	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
