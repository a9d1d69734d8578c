package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/klase-go-api/internal/dto"
	"github.com/noah-isme/klase-go-api/internal/middleware"
	"github.com/noah-isme/klase-go-api/internal/service"
	"github.com/noah-isme/klase-go-api/internal/utils"
)

// NotificationHandler serves one audience's feed: paginated reads plus SSE
// and websocket live streams. Two instances are registered, one per audience.
type NotificationHandler struct {
	service   service.FeedService
	audience  string
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler bound to a single audience feed.
func NewNotificationHandler(service service.FeedService, audience string, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		audience:  audience,
		logger:    logger.With().Str("component", "notification_handler").Str("audience", audience).Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/stream", h.stream)
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleWebsocket))
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))

	notifications, err := h.service.List(ctx, h.audience, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "notifications", notifications)
}

// stream serves the feed over SSE. The current snapshot is written before any
// live event so a new subscriber never waits for the next state change.
func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
	ctx, cancel := context.WithCancel(ctx)

	snapshot, stream, cleanup := h.service.Subscribe(ctx, h.audience)

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		if err := writeSnapshotEvent(w, snapshot); err != nil {
			h.logger.Debug().Err(err).Msg("failed to write feed snapshot")
			return
		}

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) handleWebsocket(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	snapshot, stream, cleanup := h.service.Subscribe(ctx, h.audience)
	defer func() {
		cleanup()
		cancel()
	}()

	if err := conn.WriteJSON(snapshotMessage{Event: "snapshot", Items: snapshot}); err != nil {
		h.logger.Debug().Err(err).Msg("failed to write websocket snapshot")
		return
	}

	// Reader goroutine detects the client closing the connection.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case notification, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(notificationMessage{Event: "notification", Item: notification}); err != nil {
				h.logger.Debug().Err(err).Msg("failed to write websocket notification")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

type snapshotMessage struct {
	Event string                     `json:"event"`
	Items []dto.NotificationResponse `json:"items"`
}

type notificationMessage struct {
	Event string                   `json:"event"`
	Item  dto.NotificationResponse `json:"item"`
}

func writeSnapshotEvent(w *bufio.Writer, snapshot []dto.NotificationResponse) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: snapshot\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeNotificationEvent(w *bufio.Writer, notification interface{}) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: notification\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
