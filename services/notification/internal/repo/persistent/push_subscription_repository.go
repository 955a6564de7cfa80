package persistent

import (
	"context"

	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PushSubscriptionRepository interface {
	Upsert(ctx context.Context, sub *entity.PushSubscription) error
	ListActive(ctx context.Context, userID string) ([]entity.PushSubscription, error)
	Deactivate(ctx context.Context, userID, endpoint string) (bool, error)
}

type pushSubscriptionRepository struct {
	db *gorm.DB
}

func NewPushSubscriptionRepository(db *gorm.DB) PushSubscriptionRepository {
	return &pushSubscriptionRepository{db: db}
}

// Upsert relies on the (user_id, endpoint) unique index so concurrent calls
// for the same pair collapse into one row.
func (r *pushSubscriptionRepository) Upsert(ctx context.Context, sub *entity.PushSubscription) error {
	m := &model.PushSubscriptionModel{
		ID:           uuid.New().String(),
		UserID:       sub.UserID,
		Endpoint:     sub.Endpoint,
		P256dhKey:    sub.P256dhKey,
		AuthKey:      sub.AuthKey,
		DeviceLabel:  sub.DeviceLabel,
		BrowserLabel: sub.BrowserLabel,
		Active:       sub.Active,
		SubscribedAt: sub.SubscribedAt,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"p256dh", "auth_key", "device_label", "browser_label", "active", "subscribed_at",
		}),
	}).Create(m).Error
	if err != nil {
		return &entity.StorageError{Op: "upsert push subscription", Err: err}
	}
	return nil
}

func (r *pushSubscriptionRepository) ListActive(ctx context.Context, userID string) ([]entity.PushSubscription, error) {
	var models []model.PushSubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("subscribed_at ASC").
		Order("endpoint ASC").
		Find(&models).Error; err != nil {
		return nil, &entity.StorageError{Op: "list push subscriptions", Err: err}
	}
	return ToPushSubscriptionEntities(models), nil
}

func (r *pushSubscriptionRepository) Deactivate(ctx context.Context, userID, endpoint string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PushSubscriptionModel{}).
		Where("user_id = ? AND endpoint = ? AND active = ?", userID, endpoint, true).
		Update("active", false)
	if res.Error != nil {
		return false, &entity.StorageError{Op: "deactivate push subscription", Err: res.Error}
	}
	return res.RowsAffected > 0, nil
}
