package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-portal-api/internal/models"
)

// RecordsChangedChannel is the Redis pub/sub channel carrying RecordChanged.
const RecordsChangedChannel = "records.changed"

// RecordChanged is emitted after an accepted update is committed.
type RecordChanged struct {
	Kind       models.RecordKind `json:"kind"`
	CommonID   string            `json:"commonId"`
	ParentID   string            `json:"parentId,omitempty"`
	Version    int               `json:"version"`
	Field      string            `json:"field"`
	Resolution models.Resolution `json:"resolution"`
	ChangedBy  string            `json:"changedBy"`
	Title      string            `json:"title,omitempty"`
	Label      string            `json:"label,omitempty"`
	ChangedAt  time.Time         `json:"changedAt"`
}

// RecordListener reacts to a committed change.
type RecordListener func(ctx context.Context, evt RecordChanged) error

// EventBus fans RecordChanged out to its subscribers in registration order.
// A failing subscriber is logged and does not stop the others.
type EventBus struct {
	mu        sync.RWMutex
	listeners []namedListener
	logger    *zap.Logger
}

type namedListener struct {
	name string
	fn   RecordListener
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{logger: logger}
}

// Subscribe registers fn under name.
func (b *EventBus) Subscribe(name string, fn RecordListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, namedListener{name: name, fn: fn})
}

// Publish delivers evt to every subscriber.
func (b *EventBus) Publish(ctx context.Context, evt RecordChanged) {
	if b == nil {
		return
	}
	b.mu.RLock()
	listeners := append([]namedListener(nil), b.listeners...)
	b.mu.RUnlock()

	for _, l := range listeners {
		if err := l.fn(ctx, evt); err != nil {
			b.logger.Warn("record listener failed",
				zap.String("listener", l.name),
				zap.String("kind", string(evt.Kind)),
				zap.String("commonId", evt.CommonID),
				zap.Error(err),
			)
		}
	}
}

type messagePublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// PublishToChannel forwards events to a pub/sub channel.
func PublishToChannel(pub messagePublisher, channel string) RecordListener {
	return func(ctx context.Context, evt RecordChanged) error {
		if err := pub.Publish(ctx, channel, evt); err != nil {
			return fmt.Errorf("publish record change: %w", err)
		}
		return nil
	}
}

// InvalidateCaches drops cached reads derived from the changed record.
func InvalidateCaches(cache *CacheService) RecordListener {
	return func(ctx context.Context, evt RecordChanged) error {
		keys := []string{recordCacheKey(evt.Kind, evt.CommonID)}
		if evt.Kind == models.RecordKindSubject {
			keys = append(keys, AnalysisCacheKey(evt.CommonID))
		}
		return cache.Invalidate(ctx, keys...)
	}
}

func recordCacheKey(kind models.RecordKind, commonID string) string {
	return fmt.Sprintf("records:%s:%s", kind, commonID)
}
