package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"opsdash/pkg/logger"
	"opsdash/pkg/queue"
	"opsdash/pkg/realtime"
	"opsdash/services/notification/internal/entity"
)

// RealtimeSender pushes events to live connections. Delivery is best effort;
// the return value is the number of local handles reached.
type RealtimeSender interface {
	SendToUser(ctx context.Context, userID string, evt realtime.Event) int
	BroadcastByRole(ctx context.Context, role string, evt realtime.Event) int
}

// Notifier composes the durable store with realtime delivery: the row is
// written first, then pushed. A failed write is never pushed.
type Notifier struct {
	notifications NotificationUseCase
	sender        RealtimeSender
	logger        *logger.Logger
}

func NewNotifier(notifications NotificationUseCase, sender RealtimeSender, logger *logger.Logger) *Notifier {
	return &Notifier{
		notifications: notifications,
		sender:        sender,
		logger:        logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, input entity.CreateNotificationInput) (*entity.Notification, int, error) {
	notification, err := n.notifications.CreateNotification(ctx, input)
	if err != nil {
		return nil, 0, err
	}
	return notification, n.push(ctx, notification), nil
}

func (n *Notifier) NotifyFromTemplate(ctx context.Context, code, recipientID string, variables map[string]interface{}, overrides entity.CreateNotificationInput) (*entity.Notification, int, error) {
	notification, err := n.notifications.RenderFromTemplate(ctx, code, recipientID, variables, overrides)
	if err != nil {
		return nil, 0, err
	}
	return notification, n.push(ctx, notification), nil
}

// BroadcastByRole pushes a message to every connected user with role. Nothing is stored.
func (n *Notifier) BroadcastByRole(ctx context.Context, role, senderID, senderName, message string) int {
	evt := realtime.MustEvent(realtime.EventNewNotification, realtime.NewNotification{
		SenderID:   senderID,
		SenderName: senderName,
		Message:    message,
	})
	delivered := n.sender.BroadcastByRole(ctx, role, evt)
	n.logger.Info("[DISPATCH] Broadcast to role %s reached %d connections", role, delivered)
	return delivered
}

// HandleTask processes one producer task from the queue. Tasks that fail
// validation or name an unknown template are marked malformed so they are dropped.
func (n *Notifier) HandleTask(task queue.Task) error {
	ctx := context.Background()
	input := entity.CreateNotificationInput{
		RecipientID: task.RecipientID,
		SenderID:    task.SenderID,
		Title:       task.Title,
		Body:        task.Body,
		Kind:        entity.NotificationKind(task.Kind),
		Category:    task.Category,
		ExtraData:   task.ExtraData,
		ActionURL:   task.ActionURL,
		Icon:        task.Icon,
		Priority:    entity.Priority(task.Priority),
		ExpiresAt:   task.ExpiresAt,
	}

	var err error
	switch task.Type {
	case queue.TaskTypeTemplate:
		_, _, err = n.NotifyFromTemplate(ctx, task.TemplateCode, task.RecipientID, task.Variables, input)
	default:
		_, _, err = n.Notify(ctx, input)
	}

	if errors.Is(err, entity.ErrValidation) || errors.Is(err, entity.ErrTemplateNotFound) {
		return fmt.Errorf("%w: %v", queue.ErrMalformedTask, err)
	}
	return err
}

func (n *Notifier) push(ctx context.Context, notification *entity.Notification) int {
	payload := realtime.NewNotification{Message: notification.Body}
	if notification.SenderID != nil {
		payload.SenderID = *notification.SenderID
		if withSender, err := n.notifications.GetByID(ctx, notification.ID); err == nil {
			notification.SenderName = withSender.SenderName
			notification.SenderRole = withSender.SenderRole
		} else {
			n.logger.Warn("[DISPATCH] Could not load sender for %s: %v", notification.ID, err)
		}
		payload.SenderName = notification.SenderName
	}

	raw, err := json.Marshal(notification)
	if err != nil {
		n.logger.Error("[DISPATCH] Failed to encode notification %s: %v", notification.ID, err)
		return 0
	}
	payload.Notification = raw

	evt, err := realtime.NewEvent(realtime.EventNewNotification, payload)
	if err != nil {
		n.logger.Error("[DISPATCH] Failed to build event for %s: %v", notification.ID, err)
		return 0
	}

	delivered := n.sender.SendToUser(ctx, notification.RecipientID, evt)
	if delivered == 0 {
		n.logger.Info("[DISPATCH] No local connection for %s, notification %s stored only", notification.RecipientID, notification.ID)
	}
	return delivered
}
