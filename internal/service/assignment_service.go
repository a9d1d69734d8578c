package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/klase-go-api/internal/dto"
	"github.com/noah-isme/klase-go-api/internal/models"
	"github.com/noah-isme/klase-go-api/internal/observability"
	"github.com/noah-isme/klase-go-api/internal/repository"
)

// Lifecycle errors surfaced to handlers.
var (
	// ErrAssignmentNotFound indicates the requested assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrAssignmentClosed indicates a submit against a reviewed assignment.
	ErrAssignmentClosed = errors.New("assignment is closed")
	// ErrAlreadySubmitted indicates this student already submitted.
	ErrAlreadySubmitted = errors.New("assignment already submitted")
	// ErrSubmissionCapacity indicates the submission ceiling has been reached.
	ErrSubmissionCapacity = errors.New("submission capacity reached")
	// ErrRoleRequired indicates the actor lacks the role the operation demands.
	ErrRoleRequired = errors.New("operation requires a different role")
	// ErrUploadsNotConfigured indicates a file was posted but no upload backend is configured.
	ErrUploadsNotConfigured = errors.New("attachment uploads not configured")
)

// Actor identifies the authenticated caller of a lifecycle operation.
type Actor struct {
	ID   uint
	Role string
}

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// AssignmentService exposes the assignment lifecycle use cases. Each mutating
// operation declares its required role and is gated before dispatch.
type AssignmentService interface {
	List(ctx context.Context, actor Actor) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest, file *multipart.FileHeader) (dto.AssignmentResponse, error)
	Submit(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error)
	ToggleReview(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error)
	Events(ctx context.Context, actor Actor, filter repository.LifecycleEventFilter) ([]dto.LifecycleEventResponse, int64, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	events    repository.LifecycleEventRepository
	feed      FeedService
	validator *validator.Validate
	uploader  FileUploader
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAssignmentService builds the lifecycle service.
func NewAssignmentService(repo repository.AssignmentRepository, events repository.LifecycleEventRepository, feed FeedService, validate *validator.Validate, uploader FileUploader, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		events:    events,
		feed:      feed,
		validator: validate,
		uploader:  uploader,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/klase-go-api/internal/service/assignment"),
		now:       time.Now,
	}
}

func (s *assignmentService) List(ctx context.Context, actor Actor) ([]dto.AssignmentResponse, error) {
	assignments, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments, viewFor(actor), s.today()), nil
}

func (s *assignmentService) Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}

		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment, viewFor(actor), s.today()), nil
}

func (s *assignmentService) Create(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest, file *multipart.FileHeader) (dto.AssignmentResponse, error) {
	if err := requireRole(actor, models.RoleInstructor); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "assignments.create", trace.WithAttributes(
		attribute.Int64("actor.id", int64(actor.ID)),
	))
	defer span.End()

	attachments := payload.Attachments
	if file != nil {
		attachment, err := s.uploadAttachment(spanCtx, file)
		if err != nil {
			span.RecordError(err)
			return dto.AssignmentResponse{}, err
		}
		attachments = append(attachments, attachment)
	}

	encoded, err := json.Marshal(attachments)
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("failed to encode attachments: %w", err)
	}

	assignment := models.Assignment{
		Title:          payload.Title,
		Subject:        payload.Subject,
		Description:    payload.Description,
		Deadline:       payload.Deadline,
		Category:       payload.Category,
		Points:         payload.Points,
		Attachments:    datatypes.JSON(encoded),
		Reviewed:       false,
		SubmittedCount: 0,
		TotalStudents:  payload.TotalStudents,
	}
	if assignment.Category == "" {
		assignment.Category = "Assignment"
	}
	if assignment.Points == 0 {
		assignment.Points = 100
	}
	if assignment.TotalStudents < 1 {
		assignment.TotalStudents = 1
	}

	if err := s.repo.Create(spanCtx, &assignment); err != nil {
		span.RecordError(err)
		return dto.AssignmentResponse{}, err
	}

	s.recordTransition(spanCtx, actor, models.ActionCreated, assignment)
	observability.AssignmentsCreatedTotal().Inc()

	s.logger.Info().Uint("assignment_id", assignment.ID).Str("deadline", assignment.Deadline).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment, viewFor(actor), s.today()), nil
}

func (s *assignmentService) Submit(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return dto.AssignmentResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "assignments.submit", trace.WithAttributes(
		attribute.Int64("actor.id", int64(actor.ID)),
		attribute.Int64("assignment.id", int64(id)),
	))
	defer span.End()

	assignment, err := s.repo.RegisterSubmission(spanCtx, id, actor.ID)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		case errors.Is(err, repository.ErrAssignmentClosed):
			return dto.AssignmentResponse{}, ErrAssignmentClosed
		case errors.Is(err, repository.ErrSubmissionExists):
			return dto.AssignmentResponse{}, ErrAlreadySubmitted
		case errors.Is(err, repository.ErrSubmissionCapacity):
			return dto.AssignmentResponse{}, ErrSubmissionCapacity
		default:
			return dto.AssignmentResponse{}, err
		}
	}

	s.recordTransition(spanCtx, actor, models.ActionSubmitted, assignment)
	observability.SubmissionsTotal().Inc()

	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("student_id", actor.ID).Msg("submission registered")

	return dto.NewAssignmentResponse(assignment, viewFor(actor), s.today()), nil
}

func (s *assignmentService) ToggleReview(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error) {
	if err := requireRole(actor, models.RoleInstructor); err != nil {
		return dto.AssignmentResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "assignments.toggle_review", trace.WithAttributes(
		attribute.Int64("actor.id", int64(actor.ID)),
		attribute.Int64("assignment.id", int64(id)),
	))
	defer span.End()

	current, err := s.repo.GetByID(spanCtx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.repo.SetReviewed(spanCtx, id, !current.Reviewed)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	action := models.ActionReopened
	if assignment.Reviewed {
		action = models.ActionClosed
	}
	s.recordTransition(spanCtx, actor, action, assignment)

	s.logger.Info().Uint("assignment_id", assignment.ID).Bool("reviewed", assignment.Reviewed).Msg("review flag toggled")

	return dto.NewAssignmentResponse(assignment, viewFor(actor), s.today()), nil
}

func (s *assignmentService) Events(ctx context.Context, actor Actor, filter repository.LifecycleEventFilter) ([]dto.LifecycleEventResponse, int64, error) {
	if err := requireRole(actor, models.RoleInstructor); err != nil {
		return nil, 0, err
	}

	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]dto.LifecycleEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, dto.NewLifecycleEventResponse(event))
	}

	return responses, total, nil
}

// recordTransition appends the lifecycle event and projects it into the
// audience feeds. Both feed entries for one transition derive from the same
// event record, so they cannot drift apart. A feed write failure is logged
// but does not fail the mutation: the assignment state is already committed.
func (s *assignmentService) recordTransition(ctx context.Context, actor Actor, action string, assignment models.Assignment) {
	event := models.LifecycleEvent{
		AssignmentID: assignment.ID,
		Action:       action,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Metadata: datatypes.JSONMap{
			"title":           assignment.Title,
			"subject":         assignment.Subject,
			"reviewed":        assignment.Reviewed,
			"submitted_count": assignment.SubmittedCount,
		},
	}

	if err := s.events.Create(ctx, &event); err != nil {
		s.logger.Error().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to persist lifecycle event")
	}

	for _, entry := range feedEntriesFor(action, assignment) {
		if _, err := s.feed.Append(ctx, entry); err != nil {
			s.logger.Error().Err(err).Str("audience", entry.Audience).Msg("failed to append feed entry")
		}
	}
}

// feedEntriesFor maps one lifecycle transition to its audience feed entries.
// Every action notifies the opposite role; review toggles and creation also
// append a self-acknowledgement to the acting instructor's feed.
func feedEntriesFor(action string, assignment models.Assignment) []models.Notification {
	switch action {
	case models.ActionCreated:
		return []models.Notification{
			{
				Audience: models.AudienceStudent,
				Type:     models.NotificationTypeNew,
				Title:    "New activity posted",
				Message:  fmt.Sprintf("%s (%s)", assignment.Title, assignment.Subject),
			},
			{
				Audience: models.AudienceInstructor,
				Type:     models.NotificationTypeInfo,
				Title:    "Activity created",
				Message:  fmt.Sprintf("You posted: %s", assignment.Title),
			},
		}
	case models.ActionSubmitted:
		return []models.Notification{
			{
				Audience: models.AudienceInstructor,
				Type:     models.NotificationTypeSubmission,
				Title:    "New submission",
				Message:  fmt.Sprintf("A student submitted: %s", assignment.Title),
			},
		}
	case models.ActionClosed:
		return []models.Notification{
			{
				Audience: models.AudienceStudent,
				Type:     models.NotificationTypeClosed,
				Title:    "Activity closed",
				Message:  fmt.Sprintf("%s (%s)", assignment.Title, assignment.Subject),
			},
			{
				Audience: models.AudienceInstructor,
				Type:     models.NotificationTypeClosed,
				Title:    "You closed an activity",
				Message:  assignment.Title,
			},
		}
	case models.ActionReopened:
		return []models.Notification{
			{
				Audience: models.AudienceStudent,
				Type:     models.NotificationTypeReopened,
				Title:    "Activity reopened",
				Message:  fmt.Sprintf("%s (%s)", assignment.Title, assignment.Subject),
			},
			{
				Audience: models.AudienceInstructor,
				Type:     models.NotificationTypeReopened,
				Title:    "You reopened an activity",
				Message:  assignment.Title,
			},
		}
	default:
		return nil
	}
}

func (s *assignmentService) uploadAttachment(ctx context.Context, file *multipart.FileHeader) (models.Attachment, error) {
	if s.uploader == nil {
		return models.Attachment{}, ErrUploadsNotConfigured
	}

	src, err := file.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to open attachment: %w", err)
	}
	defer src.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, src); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}

	kind := mimetype.Detect(buf.Bytes()).String()

	url, err := s.uploader.Upload(ctx, file.Filename, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to upload attachment: %w", err)
	}

	return models.Attachment{Name: file.Filename, Kind: kind, URL: url}, nil
}

func (s *assignmentService) today() string {
	return s.now().Format(models.DeadlineLayout)
}

func requireRole(actor Actor, role string) error {
	if actor.Role != role {
		return fmt.Errorf("%w: need %s", ErrRoleRequired, role)
	}
	return nil
}

func viewFor(actor Actor) models.StatusView {
	if actor.Role == models.RoleInstructor {
		return models.InstructorView
	}
	return models.StudentView
}
