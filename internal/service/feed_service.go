package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/klase-go-api/internal/dto"
	"github.com/noah-isme/klase-go-api/internal/models"
	"github.com/noah-isme/klase-go-api/internal/observability"
	"github.com/noah-isme/klase-go-api/internal/repository"
)

const (
	feedBufferSize   = 16
	feedCacheTTL     = 2 * time.Minute
	feedSnapshotSize = 50
)

// FeedService owns one append-only notification feed per audience and
// broadcasts every new entry to all live subscribers of that audience.
type FeedService interface {
	Append(ctx context.Context, notification models.Notification) (dto.NotificationResponse, error)
	List(ctx context.Context, audience string, limit, offset int) ([]dto.NotificationResponse, error)
	Subscribe(ctx context.Context, audience string) ([]dto.NotificationResponse, <-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type feedService struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisChan   string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	sanitizer   *bluemonday.Policy
	broker      *feedBroker
	nodeID      string
}

type feedEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type feedBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.NotificationResponse]struct{}
}

// NewFeedService constructs a feed service. Redis and NATS are optional;
// when absent the service degrades to single-node broadcasting.
func NewFeedService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) FeedService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":feed"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".feed"
	}

	return &feedService{
		repo:        repo,
		redis:       redisClient,
		redisChan:   channel,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "feed_service").Logger(),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &feedBroker{
			subscribers: make(map[string]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *feedService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChan != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Append persists the entry, invalidates the audience's read cache, and
// broadcasts it locally and to peer nodes. Entries are immutable once written.
func (s *feedService) Append(ctx context.Context, notification models.Notification) (dto.NotificationResponse, error) {
	audience := strings.ToLower(strings.TrimSpace(notification.Audience))
	if audience != models.AudienceStudent && audience != models.AudienceInstructor {
		return dto.NotificationResponse{}, errors.New("unknown notification audience")
	}
	notification.Audience = audience

	if notification.Type == "" {
		notification.Type = models.NotificationTypeInfo
	}

	notification.Message = strings.TrimSpace(s.sanitizer.Sanitize(notification.Message))
	notification.Title = strings.TrimSpace(s.sanitizer.Sanitize(notification.Title))
	if notification.Title == "" {
		return dto.NotificationResponse{}, errors.New("notification title empty after sanitization")
	}

	if err := s.repo.Create(ctx, &notification); err != nil {
		return dto.NotificationResponse{}, err
	}

	s.invalidateCache(ctx, audience)

	response := dto.NewNotificationResponse(notification)
	s.broker.broadcast(audience, response)
	if err := s.publish(ctx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish feed event to broker")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(audience, response.Type).Inc()

	return response, nil
}

// List reads an audience feed newest first. The Redis cache fronts the
// database for the common first-page read and is refreshed on append.
func (s *feedService) List(ctx context.Context, audience string, limit, offset int) ([]dto.NotificationResponse, error) {
	audience = strings.ToLower(strings.TrimSpace(audience))
	if audience == "" {
		return nil, errors.New("audience is required")
	}

	cacheable := s.redis != nil && offset == 0 && limit == 0
	cacheKey := s.cacheKey(audience)

	if cacheable {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var responses []dto.NotificationResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &responses); unmarshalErr == nil {
				return responses, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read feed cache")
		}
	}

	notifications, err := s.repo.ListByAudience(ctx, audience, limit, offset)
	if err != nil {
		return nil, err
	}

	responses := dto.NewNotificationResponseSlice(notifications)

	if cacheable {
		if payload, err := json.Marshal(responses); err == nil {
			if err := s.redis.Set(ctx, cacheKey, payload, feedCacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store feed cache")
			}
		}
	}

	return responses, nil
}

// Subscribe registers a live listener for one audience. The returned snapshot
// is the feed's current state; subscribers never wait for the next event to
// see data. The cancel func must be called when the consumer disconnects.
func (s *feedService) Subscribe(ctx context.Context, audience string) ([]dto.NotificationResponse, <-chan dto.NotificationResponse, func()) {
	audience = strings.ToLower(strings.TrimSpace(audience))

	snapshot, err := s.List(ctx, audience, feedSnapshotSize, 0)
	if err != nil {
		s.logger.Warn().Err(err).Str("audience", audience).Msg("failed to load feed snapshot for subscriber")
		snapshot = []dto.NotificationResponse{}
	}

	channel := make(chan dto.NotificationResponse, feedBufferSize)
	s.broker.subscribe(audience, channel)
	observability.StreamClientsActive().Inc()

	cleanup := func() {
		s.broker.unsubscribe(audience, channel)
		observability.StreamClientsActive().Dec()
	}

	return snapshot, channel, cleanup
}

func (s *feedService) cacheKey(audience string) string {
	return "feed:" + audience
}

func (s *feedService) invalidateCache(ctx context.Context, audience string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, s.cacheKey(audience)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate feed cache")
	}
}

func (s *feedService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	event := feedEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChan != "" {
		if err := s.redis.Publish(ctx, s.redisChan, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *feedService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChan)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("feed redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *feedService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "klase-feed", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats feed subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain feed nats subscription")
		}
	}()
}

func (s *feedService) handleEvent(payload []byte) {
	var event feedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid feed event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	notification := event.Notification
	if notification.Type == "" {
		notification.Type = models.NotificationTypeInfo
	}

	observability.NotificationsPublishedTotal().WithLabelValues(notification.Audience, notification.Type).Inc()
	s.broker.broadcast(notification.Audience, notification)
}

func (b *feedBroker) subscribe(audience string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[audience]; !exists {
		b.subscribers[audience] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[audience][ch] = struct{}{}
}

func (b *feedBroker) unsubscribe(audience string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[audience]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, audience)
		}
	}
}

func (b *feedBroker) broadcast(audience string, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := b.subscribers[audience]
	for ch := range subscribers {
		select {
		case ch <- notification:
		default:
		}
	}
}
