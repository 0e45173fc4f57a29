package service

import (
	"context"
	"fmt"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"
	"school_portal_backend/pkg/logger"
	"school_portal_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// Audience is the addressing mode of a notification: exactly one of a direct
// receiver or a broadcast role (RoleAll reaches everyone).
type Audience struct {
	UserID *uint
	Role   model.UserRole
}

func ToUser(id uint) Audience {
	return Audience{UserID: &id}
}

func ToRole(role model.UserRole) Audience {
	return Audience{Role: role}
}

var Everyone = Audience{Role: model.RoleAll}

type NotificationStore interface {
	Create(n *model.Notification) error
	ListForUser(userID uint, role model.UserRole, page, limit int) ([]model.Notification, int64, error)
	CountUnread(userID uint, role model.UserRole) (int64, error)
	MarkRead(id string, userID uint, role model.UserRole) error
}

// Pusher delivers to live connections. Implementations must be fire-and-forget.
type Pusher interface {
	PushToUsers(userIDs []uint, msg WSMessage)
	PushToRole(role model.UserRole, msg WSMessage)
}

type NotificationService struct {
	Store NotificationStore
	Hub   Pusher
}

func NewNotificationService(store NotificationStore, hub Pusher) *NotificationService {
	return &NotificationService{Store: store, Hub: hub}
}

// Notifier is the contract workflow services depend on.
type Notifier interface {
	Send(ctx context.Context, senderID uint, audience Audience, title, message string, severity model.NotificationSeverity, link string) (*model.Notification, error)
}

// Send persists the notification, then pushes it to live connections. Push is
// strictly best-effort: the persisted record never rolls back on delivery
// failure and the caller only sees persistence errors.
func (s *NotificationService) Send(ctx context.Context, senderID uint, audience Audience, title, message string, severity model.NotificationSeverity, link string) (*model.Notification, error) {
	if audience.UserID == nil && audience.Role == "" {
		return nil, fmt.Errorf("%w: notification needs a receiver or a role", util.ErrValidation)
	}
	if severity == "" {
		severity = model.SeverityInfo
	}

	n := &model.Notification{
		SenderID:   senderID,
		ReceiverID: audience.UserID,
		Role:       audience.Role,
		Title:      title,
		Message:    message,
		Severity:   severity,
		Link:       link,
	}

	if err := s.Store.Create(n); err != nil {
		return nil, err
	}

	audienceLabel := "direct"
	if audience.UserID == nil {
		audienceLabel = string(audience.Role)
	}
	monitoring.NotificationCounter.WithLabelValues(audienceLabel, string(severity)).Inc()

	if s.Hub != nil {
		msg := WSMessage{Type: "NOTIFICATION", Data: n}
		if audience.UserID != nil {
			s.Hub.PushToUsers([]uint{*audience.UserID}, msg)
		} else {
			s.Hub.PushToRole(audience.Role, msg)
		}
		logger.Log.Debug("Notification dispatched",
			zap.String("id", n.ID),
			zap.String("audience", audienceLabel),
			zap.String("title", title))
	}

	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID uint, role model.UserRole, page, limit int) ([]model.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.Store.ListForUser(userID, role, page, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint, role model.UserRole) (int64, error) {
	return s.Store.CountUnread(userID, role)
}

func (s *NotificationService) MarkRead(ctx context.Context, id string, userID uint, role model.UserRole) error {
	return s.Store.MarkRead(id, userID, role)
}
