package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"opsdash/pkg/logger"
	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/repo/persistent"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// NotificationUseCase is the durable notification log.
type NotificationUseCase interface {
	CreateNotification(ctx context.Context, input entity.CreateNotificationInput) (*entity.Notification, error)
	RenderFromTemplate(ctx context.Context, code, recipientID string, variables map[string]interface{}, overrides entity.CreateNotificationInput) (*entity.Notification, error)
	ListForUser(ctx context.Context, recipientID string, limit, offset int) ([]*entity.Notification, int64, error)
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	GetForUser(ctx context.Context, id, recipientID string) (*entity.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	SoftDelete(ctx context.Context, id, recipientID string) (bool, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	Stats(ctx context.Context, recipientID string) (*entity.NotificationStats, error)
}

type notificationUseCase struct {
	notificationRepo persistent.NotificationRepository
	templates        *TemplateEngine
	logger           *logger.Logger
	now              func() time.Time
}

func NewNotificationUseCase(notificationRepo persistent.NotificationRepository, templates *TemplateEngine, logger *logger.Logger) NotificationUseCase {
	return &notificationUseCase{
		notificationRepo: notificationRepo,
		templates:        templates,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (uc *notificationUseCase) CreateNotification(ctx context.Context, input entity.CreateNotificationInput) (*entity.Notification, error) {
	notification, err := uc.buildNotification(input)
	if err != nil {
		return nil, err
	}

	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		uc.logger.Error("[STORE] Failed to create notification for %s: %v", notification.RecipientID, err)
		return nil, err
	}

	uc.logger.Info("[STORE] Created notification %s for %s (%s)", notification.ID, notification.RecipientID, notification.Kind)
	return notification, nil
}

// RenderFromTemplate renders code with variables and stores the result for
// recipientID. Non-empty fields of overrides win over the template defaults,
// and extra_data records the variables used.
func (uc *notificationUseCase) RenderFromTemplate(ctx context.Context, code, recipientID string, variables map[string]interface{}, overrides entity.CreateNotificationInput) (*entity.Notification, error) {
	rendered, err := uc.templates.Render(ctx, code, variables)
	if err != nil {
		return nil, err
	}

	input := overrides
	input.RecipientID = recipientID
	input.Title = rendered.Title
	input.Body = rendered.Body
	if input.Kind == "" {
		input.Kind = rendered.Kind
	}
	if input.Icon == "" {
		input.Icon = rendered.Icon
	}
	if input.Category == "" {
		input.Category = rendered.Category
	}
	input.ExtraData = copyVariables(variables)

	return uc.CreateNotification(ctx, input)
}

func (uc *notificationUseCase) ListForUser(ctx context.Context, recipientID string, limit, offset int) ([]*entity.Notification, int64, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uc.notificationRepo.ListActiveByRecipient(ctx, recipientID, limit, offset)
}

func (uc *notificationUseCase) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	return uc.notificationRepo.GetByID(ctx, id)
}

// GetForUser hides rows that belong to someone else behind ErrNotFound.
func (uc *notificationUseCase) GetForUser(ctx context.Context, id, recipientID string) (*entity.Notification, error) {
	notification, err := uc.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification.RecipientID != recipientID {
		return nil, entity.ErrNotFound
	}
	return notification, nil
}

func (uc *notificationUseCase) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	return uc.notificationRepo.MarkRead(ctx, id, recipientID, uc.now())
}

func (uc *notificationUseCase) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	count, err := uc.notificationRepo.MarkAllRead(ctx, recipientID, uc.now())
	if err != nil {
		return 0, err
	}
	uc.logger.Info("[STORE] Marked %d notifications read for %s", count, recipientID)
	return count, nil
}

func (uc *notificationUseCase) SoftDelete(ctx context.Context, id, recipientID string) (bool, error) {
	return uc.notificationRepo.SoftDelete(ctx, id, recipientID)
}

func (uc *notificationUseCase) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	return uc.notificationRepo.CountUnread(ctx, recipientID)
}

func (uc *notificationUseCase) Stats(ctx context.Context, recipientID string) (*entity.NotificationStats, error) {
	return uc.notificationRepo.Stats(ctx, recipientID)
}

func (uc *notificationUseCase) buildNotification(input entity.CreateNotificationInput) (*entity.Notification, error) {
	recipientID := strings.TrimSpace(input.RecipientID)
	if recipientID == "" {
		return nil, &entity.ValidationError{Field: "recipient_id", Reason: "is required"}
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, &entity.ValidationError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, &entity.ValidationError{Field: "body", Reason: "is required"}
	}

	kind, err := entity.NormalizeKind(input.Kind)
	if err != nil {
		return nil, &entity.ValidationError{Field: "kind", Reason: err.Error()}
	}

	priority := input.Priority
	if priority == "" {
		priority = entity.PriorityNormal
	}
	if !priority.Valid() {
		return nil, &entity.ValidationError{Field: "priority", Reason: fmt.Sprintf("%q is not a known priority", priority)}
	}

	category := input.Category
	if category == "" {
		category = entity.DefaultCategory
	}
	icon := input.Icon
	if icon == "" {
		icon = entity.DefaultIcon
	}
	extra := input.ExtraData
	if extra == nil {
		extra = map[string]interface{}{}
	}

	notification := &entity.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Title:       input.Title,
		Body:        input.Body,
		Kind:        kind,
		Category:    category,
		ExtraData:   extra,
		Icon:        icon,
		Priority:    priority,
		CreatedAt:   uc.now(),
		ExpiresAt:   input.ExpiresAt,
		State:       entity.StateActive,
	}
	if senderID := strings.TrimSpace(input.SenderID); senderID != "" {
		notification.SenderID = &senderID
	}
	if input.ActionURL != "" {
		actionURL := input.ActionURL
		notification.ActionURL = &actionURL
	}
	return notification, nil
}

func copyVariables(variables map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(variables))
	for k, v := range variables {
		out[k] = v
	}
	return out
}
