package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-portal-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
	"github.com/noah-isme/curriculum-portal-api/pkg/jobs"
)

const notificationJobType = "notification.deliver"

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// NotificationService persists notifications through a background queue.
type NotificationService struct {
	store   notificationStore
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService wires the store behind a worker queue. The queue must
// be started with Start before notifications are delivered asynchronously.
func NewNotificationService(store notificationStore, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{store: store, metrics: metrics, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending notifications and waits for the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues n. When the queue is not running the notification is written
// inline; a full queue drops it with a warning.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) error {
	if n.UserID == "" {
		return nil
	}
	err := s.queue.Enqueue(jobs.Job{Type: notificationJobType, Payload: n})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jobs.ErrQueueStopped):
		return s.deliver(ctx, n)
	default:
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("notification dropped", zap.String("userId", n.UserID), zap.Error(err))
		return err
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	return s.deliver(ctx, n)
}

func (s *NotificationService) deliver(ctx context.Context, n models.Notification) error {
	if err := s.store.Create(ctx, &n); err != nil {
		s.metrics.RecordNotification("failed")
		return err
	}
	s.metrics.RecordNotification("delivered")
	return nil
}

// List returns the caller's latest notifications.
func (s *NotificationService) List(ctx context.Context, actor *models.JWTClaims, limit int) ([]models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	items, err := s.store.ListByUser(ctx, actor.UserID, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list notifications")
	}
	return items, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor *models.JWTClaims, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.store.MarkRead(ctx, actor.UserID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Internal(err, "failed to update notification")
	}
	return nil
}

// OnRecordChanged tells the proposer that their change was accepted.
func (s *NotificationService) OnRecordChanged(ctx context.Context, evt RecordChanged) error {
	proposer := evt.Resolution.By
	if proposer == "" || proposer == evt.ChangedBy {
		return nil
	}
	return s.Notify(ctx, models.Notification{
		UserID:  proposer,
		Heading: "Update accepted",
		Message: changeMessage(evt.Title, evt.Label, evt.Field, "accepted"),
		Link:    recordLink(evt.Kind, evt.CommonID),
	})
}

func changeMessage(title, label, field, outcome string) string {
	subject := field
	if title != "" {
		subject = title
	}
	if label != "" {
		return fmt.Sprintf("Your update to %s on %q was %s.", subject, label, outcome)
	}
	return fmt.Sprintf("Your update to %s was %s.", subject, outcome)
}

func recordLink(kind models.RecordKind, commonID string) string {
	return fmt.Sprintf("/%ss/%s", kind, commonID)
}
