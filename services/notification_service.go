package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/store"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

// NotificationService is the append-only per-user notification log.
type NotificationService struct {
	store store.Notifications
	log   logging.Logger
	now   func() time.Time
}

func NewNotificationService(s store.Notifications, log logging.Logger) *NotificationService {
	return &NotificationService{store: s, log: log, now: time.Now}
}

// Append records a notification for userID. typ defaults to info.
func (s *NotificationService) Append(ctx context.Context, userID primitive.ObjectID, title, message, typ string) (*models.Notification, error) {
	title, message = strings.TrimSpace(title), strings.TrimSpace(message)
	if title == "" || message == "" {
		return nil, errors.Validation("title and message are required")
	}
	if typ = strings.TrimSpace(typ); typ == "" {
		typ = models.NotificationTypeInfo
	}
	n := &models.Notification{
		User:      userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: s.now(),
	}
	if err := s.store.Append(ctx, n); err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to store notification", http.StatusInternalServerError)
	}
	return n, nil
}

// ListFor returns userID's notifications, newest first.
func (s *NotificationService) ListFor(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load notifications", http.StatusInternalServerError)
	}
	return list, nil
}

// Emit appends without reporting failure to the caller. Lifecycle writes
// have already committed by the time it runs; a lost notification is only
// logged.
func (s *NotificationService) Emit(ctx context.Context, userID primitive.ObjectID, title, message, typ string) {
	if _, err := s.Append(ctx, userID, title, message, typ); err != nil {
		s.log.Warn(ctx, "notification dropped", "user", userID.Hex(), "title", title, "error", err)
	}
}
