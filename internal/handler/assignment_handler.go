package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/klase-go-api/internal/dto"
	"github.com/noah-isme/klase-go-api/internal/repository"
	"github.com/noah-isme/klase-go-api/internal/service"
	"github.com/noah-isme/klase-go-api/internal/utils"
)

// AssignmentHandler wires assignment lifecycle HTTP routes.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group. Role checks are
// enforced again inside the service; the middleware rejects early.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Patch("/:id/submit", h.submit)
	router.Patch("/:id/review", h.toggleReview)
	router.Get("/:id/events", h.events)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	assignments, err := h.service.List(c.Context(), actorFromContext(c))
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Get(c.Context(), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	payload := dto.AssignmentCreateRequest{
		Title:       c.FormValue("title"),
		Subject:     c.FormValue("subject"),
		Description: c.FormValue("description"),
		Deadline:    c.FormValue("deadline"),
		Category:    c.FormValue("category"),
	}
	if points := c.FormValue("points"); points != "" {
		parsed, err := strconv.Atoi(points)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid points")
		}
		payload.Points = parsed
	}
	if total := c.FormValue("total_students"); total != "" {
		parsed, err := strconv.Atoi(total)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid total_students")
		}
		payload.TotalStudents = parsed
	}

	file, err := c.FormFile("file")
	if err != nil {
		file = nil
	}

	assignment, err := h.service.Create(c.Context(), actorFromContext(c), payload, file)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Submit(c.Context(), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission registered", assignment)
}

func (h *AssignmentHandler) toggleReview(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.ToggleReview(c.Context(), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "review flag toggled", assignment)
}

func (h *AssignmentHandler) events(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	filter := repository.LifecycleEventFilter{
		AssignmentID: &id,
		Action:       c.Query("action"),
		Page:         page,
		PageSize:     pageSize,
	}

	events, total, err := h.service.Events(c.Context(), actorFromContext(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "events retrieved", fiber.Map{
		"items": events,
		"total": total,
	})
}

func (h *AssignmentHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrRoleRequired):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrAssignmentClosed):
		return utils.SendError(c, fiber.StatusConflict, "activity is closed")
	case errors.Is(err, service.ErrAlreadySubmitted):
		return utils.SendError(c, fiber.StatusConflict, "already submitted")
	case errors.Is(err, service.ErrSubmissionCapacity):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "submission capacity reached")
	case errors.Is(err, service.ErrUploadsNotConfigured):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "attachment uploads not configured")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *AssignmentHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
