// Package realtime fans proctoring events out to admin dashboards over
// Redis Pub/Sub.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/config"
)

// EventType names a monitor feed message.
type EventType string

const (
	EventActivitySession EventType = "activity_session"
	EventAttempt         EventType = "attempt"
	EventFlag            EventType = "flag"
	EventSessionOpened   EventType = "session_opened"
	EventSessionClosed   EventType = "session_closed"
)

// Message is the JSON document published on a monitor channel.
type Message struct {
	Type   EventType `json:"type"`
	TestID string    `json:"test_id"`
	Data   any       `json:"data"`
	SentAt time.Time `json:"sent_at"`
}

// Publisher writes monitor messages. A nil Publisher or one without a Redis
// client drops every message.
type Publisher struct {
	rdb *redis.Client
	log zerolog.Logger
	now func() time.Time
}

func NewPublisher(rdb *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{
		rdb: rdb,
		log: log.With().Str("component", "realtime_publisher").Logger(),
		now: time.Now,
	}
}

// Publish sends a message on the test's monitor channel and on the global
// activity feed. Failures are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, testID string, t EventType, data any) {
	if p == nil || p.rdb == nil {
		return
	}

	payload, err := json.Marshal(Message{Type: t, TestID: testID, Data: data, SentAt: p.now().UTC()})
	if err != nil {
		p.log.Error().Err(err).Str("type", string(t)).Msg("Failed to encode monitor message")
		return
	}

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, config.CacheKey.TestMonitorChannel(testID), payload)
	pipe.Publish(ctx, config.CacheKey.ActivityFeedChannel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn().Err(err).Str("test_id", testID).Str("type", string(t)).Msg("Failed to publish monitor message")
	}
}

// Subscribe opens a subscription on a test's monitor channel, or on the
// global feed when testID is empty. The caller must close it.
func (p *Publisher) Subscribe(ctx context.Context, testID string) *redis.PubSub {
	channel := config.CacheKey.ActivityFeedChannel()
	if testID != "" {
		channel = config.CacheKey.TestMonitorChannel(testID)
	}
	return p.rdb.Subscribe(ctx, channel)
}
