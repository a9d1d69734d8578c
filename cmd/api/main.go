package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/klase-go-api/internal/config"
	"github.com/noah-isme/klase-go-api/internal/database"
	"github.com/noah-isme/klase-go-api/internal/handler"
	"github.com/noah-isme/klase-go-api/internal/middleware"
	"github.com/noah-isme/klase-go-api/internal/models"
	"github.com/noah-isme/klase-go-api/internal/repository"
	"github.com/noah-isme/klase-go-api/internal/router"
	"github.com/noah-isme/klase-go-api/internal/service"
	cloud "github.com/noah-isme/klase-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Assignment{}, &models.Submission{}, &models.Notification{}, &models.LifecycleEvent{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cloudService, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudService
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	eventRepo := repository.NewLifecycleEventRepository(db)

	feedService := service.NewFeedService(notificationRepo, redisClient, cfg.ChannelBase, natsConn, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, eventRepo, feedService, validate, uploader, logger)
	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.TokenTTL, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	studentFeedHandler := handler.NewNotificationHandler(feedService, models.AudienceStudent, logger, cfg.StreamKeepAlive)
	instructorFeedHandler := handler.NewNotificationHandler(feedService, models.AudienceInstructor, logger, cfg.StreamKeepAlive)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feedService.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:                   authHandler,
		AssignmentHandler:             assignmentHandler,
		NotificationHandler:           studentFeedHandler,
		InstructorNotificationHandler: instructorFeedHandler,
		JWTMiddleware:                 middleware.JWTProtected(cfg.JWTSecret),
		SubmitRateLimit:               middleware.RateLimit("assignment-submit", 10, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
