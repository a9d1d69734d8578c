package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/klase-go-api/internal/config"
	"github.com/noah-isme/klase-go-api/internal/handler"
	"github.com/noah-isme/klase-go-api/internal/middleware"
	"github.com/noah-isme/klase-go-api/internal/models"
	"github.com/noah-isme/klase-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler                   *handler.AuthHandler
	AssignmentHandler             *handler.AssignmentHandler
	NotificationHandler           *handler.NotificationHandler
	InstructorNotificationHandler *handler.NotificationHandler
	JWTMiddleware                 fiber.Handler
	SubmitRateLimit               fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		authGroup := api.Group("/auth")
		deps.AuthHandler.Register(authGroup)

		protectedAuthGroup := api.Group("/auth", jwtMiddleware)
		deps.AuthHandler.RegisterProtected(protectedAuthGroup)
	}

	if deps.AssignmentHandler != nil {
		assignmentGroup := api.Group("/assignments", jwtMiddleware)
		if deps.SubmitRateLimit != nil {
			assignmentGroup.Use("/:id/submit", deps.SubmitRateLimit)
		}
		deps.AssignmentHandler.Register(assignmentGroup)
	}

	if deps.NotificationHandler != nil {
		notificationGroup := api.Group("/notifications", jwtMiddleware,
			middleware.RequireRole(models.RoleStudent))
		deps.NotificationHandler.Register(notificationGroup)
	}

	if deps.InstructorNotificationHandler != nil {
		instructorGroup := api.Group("/instructor-notifications", jwtMiddleware,
			middleware.RequireRole(models.RoleInstructor))
		deps.InstructorNotificationHandler.Register(instructorGroup)
	}
}
