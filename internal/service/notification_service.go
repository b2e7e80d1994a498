package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wrenchworks/cmms-api/internal/models"
	"github.com/wrenchworks/cmms-api/pkg/config"
	appErrors "github.com/wrenchworks/cmms-api/pkg/errors"
	"github.com/wrenchworks/cmms-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationPayload struct {
	UserID      string
	Type        models.NotificationType
	Title       string
	Body        string
	WorkOrderID string
}

// NotificationService emits lifecycle notifications. Emission is
// fire-and-forget: delivery happens on a background queue after the owning
// transaction has committed, and failures are logged, never propagated.
type NotificationService struct {
	repo    notificationStore
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService builds the service and its backing queue.
func NewNotificationService(repo notificationStore, metrics *MetricsService, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start begins queue consumption.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		s.logger.Error("notification job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Create(ctx, &models.Notification{
		UserID:      payload.UserID,
		Type:        payload.Type,
		Title:       payload.Title,
		Body:        payload.Body,
		WorkOrderID: payload.WorkOrderID,
	})
}

func (s *NotificationService) emit(payload notificationPayload) {
	if payload.UserID == "" {
		return
	}
	ok := s.queue.TryEnqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(payload.Type),
		Payload: payload,
	})
	if !ok {
		s.metrics.NotificationDropped()
		s.logger.Warn("notification dropped",
			zap.String("type", string(payload.Type)),
			zap.String("work_order_id", payload.WorkOrderID),
			zap.String("user_id", payload.UserID),
		)
	}
}

// NotifyAssigned informs a technician about a new assignment.
func (s *NotificationService) NotifyAssigned(workOrderID, assigneeID, title string) {
	s.emit(notificationPayload{
		UserID:      assigneeID,
		Type:        models.NotificationAssigned,
		Title:       "Work order assigned",
		Body:        fmt.Sprintf("You have been assigned to work order %q", title),
		WorkOrderID: workOrderID,
	})
}

// NotifyStatusChanged informs the given recipients about a transition.
func (s *NotificationService) NotifyStatusChanged(workOrderID string, from, to models.WorkOrderStatus, title string, recipients []string) {
	for _, userID := range recipients {
		s.emit(notificationPayload{
			UserID:      userID,
			Type:        models.NotificationStatusChanged,
			Title:       "Work order status changed",
			Body:        fmt.Sprintf("Work order %q moved from %s to %s", title, from, to),
			WorkOrderID: workOrderID,
		})
	}
}

// NotifyCompleted informs the given recipients about a completion.
func (s *NotificationService) NotifyCompleted(workOrderID, title string, recipients []string) {
	for _, userID := range recipients {
		s.emit(notificationPayload{
			UserID:      userID,
			Type:        models.NotificationCompleted,
			Title:       "Work order completed",
			Body:        fmt.Sprintf("Work order %q has been completed", title),
			WorkOrderID: workOrderID,
		})
	}
}

// List returns a user's notifications.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead flags all of a user's notifications as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}
