package persistent

import (
	"encoding/json"
	"fmt"

	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/model"

	"gorm.io/datatypes"
)

func ToNotificationEntity(m *model.NotificationModel) (*entity.Notification, error) {
	if m == nil {
		return nil, nil
	}

	extra := map[string]interface{}{}
	if len(m.ExtraData) > 0 {
		if err := json.Unmarshal(m.ExtraData, &extra); err != nil {
			return nil, fmt.Errorf("notification %s: %w", m.ID, err)
		}
	}

	return &entity.Notification{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		SenderID:    m.SenderID,
		Title:       m.Title,
		Body:        m.Body,
		Kind:        entity.NotificationKind(m.Kind),
		Category:    m.Category,
		ExtraData:   extra,
		ActionURL:   m.ActionURL,
		Icon:        m.Icon,
		Priority:    entity.Priority(m.Priority),
		CreatedAt:   m.CreatedAt,
		ReadAt:      m.ReadAt,
		ExpiresAt:   m.ExpiresAt,
		State:       entity.NotificationState(m.State),
	}, nil
}

func ToNotificationRowEntity(r *model.NotificationRow) (*entity.Notification, error) {
	if r == nil {
		return nil, nil
	}
	n, err := ToNotificationEntity(&r.NotificationModel)
	if err != nil {
		return nil, err
	}
	if r.SenderName != nil {
		n.SenderName = *r.SenderName
	}
	if r.SenderRole != nil {
		n.SenderRole = *r.SenderRole
	}
	return n, nil
}

func ToNotificationModel(e *entity.Notification) (*model.NotificationModel, error) {
	if e == nil {
		return nil, nil
	}

	extra := e.ExtraData
	if extra == nil {
		extra = map[string]interface{}{}
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}

	return &model.NotificationModel{
		ID:          e.ID,
		RecipientID: e.RecipientID,
		SenderID:    e.SenderID,
		Title:       e.Title,
		Body:        e.Body,
		Kind:        string(e.Kind),
		Category:    e.Category,
		ExtraData:   datatypes.JSON(raw),
		ActionURL:   e.ActionURL,
		Icon:        e.Icon,
		Priority:    string(e.Priority),
		CreatedAt:   e.CreatedAt,
		ReadAt:      e.ReadAt,
		ExpiresAt:   e.ExpiresAt,
		State:       string(e.State),
	}, nil
}

func ToTemplateEntity(m *model.TemplateModel) *entity.Template {
	if m == nil {
		return nil
	}
	return &entity.Template{
		Code:          m.Code,
		TitleTemplate: m.TitleTemplate,
		BodyTemplate:  m.BodyTemplate,
		DefaultKind:   entity.NotificationKind(m.DefaultKind),
		DefaultIcon:   m.DefaultIcon,
		Category:      m.Category,
		Active:        m.Active,
	}
}

func ToPushSubscriptionEntity(m *model.PushSubscriptionModel) entity.PushSubscription {
	return entity.PushSubscription{
		UserID:       m.UserID,
		Endpoint:     m.Endpoint,
		P256dhKey:    m.P256dhKey,
		AuthKey:      m.AuthKey,
		DeviceLabel:  m.DeviceLabel,
		BrowserLabel: m.BrowserLabel,
		Active:       m.Active,
		SubscribedAt: m.SubscribedAt,
	}
}

func ToPushSubscriptionEntities(models []model.PushSubscriptionModel) []entity.PushSubscription {
	subs := make([]entity.PushSubscription, len(models))
	for i := range models {
		subs[i] = ToPushSubscriptionEntity(&models[i])
	}
	return subs
}
