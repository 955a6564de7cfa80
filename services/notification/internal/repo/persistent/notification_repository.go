package persistent

import (
	"context"
	"errors"
	"time"

	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	ListActiveByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*entity.Notification, int64, error)
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error)
	SoftDelete(ctx context.Context, id, recipientID string) (bool, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	Stats(ctx context.Context, recipientID string) (*entity.NotificationStats, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	m, err := ToNotificationModel(notification)
	if err != nil {
		return &entity.StorageError{Op: "encode extra_data", Err: err}
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return &entity.StorageError{Op: "insert notification", Err: err}
	}
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	var row model.NotificationRow
	err := r.withSender(ctx).Where("notifications.id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, &entity.StorageError{Op: "get notification", Err: err}
	}
	notification, err := ToNotificationRowEntity(&row)
	if err != nil {
		return nil, &entity.StorageError{Op: "decode extra_data", Err: err}
	}
	return notification, nil
}

func (r *notificationRepository) ListActiveByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*entity.Notification, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("recipient_id = ? AND state = ?", recipientID, entity.StateActive).
		Count(&total).Error; err != nil {
		return nil, 0, &entity.StorageError{Op: "count notifications", Err: err}
	}

	var rows []model.NotificationRow
	if err := r.withSender(ctx).
		Where("notifications.recipient_id = ? AND notifications.state = ?", recipientID, entity.StateActive).
		Order("notifications.created_at DESC").
		Order("notifications.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, &entity.StorageError{Op: "list notifications", Err: err}
	}

	notifications := make([]*entity.Notification, len(rows))
	for i := range rows {
		n, err := ToNotificationRowEntity(&rows[i])
		if err != nil {
			return nil, 0, &entity.StorageError{Op: "decode extra_data", Err: err}
		}
		notifications[i] = n
	}
	return notifications, total, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", id, recipientID).
		Update("read_at", at)
	if res.Error != nil {
		return false, &entity.StorageError{Op: "mark read", Err: res.Error}
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("recipient_id = ? AND state = ? AND read_at IS NULL", recipientID, entity.StateActive).
		Update("read_at", at)
	if res.Error != nil {
		return 0, &entity.StorageError{Op: "mark all read", Err: res.Error}
	}
	return res.RowsAffected, nil
}

func (r *notificationRepository) SoftDelete(ctx context.Context, id, recipientID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("id = ? AND recipient_id = ? AND state = ?", id, recipientID, entity.StateActive).
		Update("state", entity.StateDeleted)
	if res.Error != nil {
		return false, &entity.StorageError{Op: "soft delete", Err: res.Error}
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("recipient_id = ? AND state = ? AND read_at IS NULL", recipientID, entity.StateActive).
		Count(&count).Error; err != nil {
		return 0, &entity.StorageError{Op: "count unread", Err: err}
	}
	return count, nil
}

type statsRow struct {
	TotalCount    int64
	ReadCount     int64
	DistinctCount int64
}

// Stats aggregates active notifications. An empty recipientID yields the global rollup.
func (r *notificationRepository) Stats(ctx context.Context, recipientID string) (*entity.NotificationStats, error) {
	var row statsRow
	query := r.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("state = ?", entity.StateActive)

	if recipientID != "" {
		query = query.Select("COUNT(*) AS total_count, COUNT(read_at) AS read_count, COUNT(DISTINCT kind) AS distinct_count").
			Where("recipient_id = ?", recipientID)
	} else {
		query = query.Select("COUNT(*) AS total_count, COUNT(read_at) AS read_count, COUNT(DISTINCT recipient_id) AS distinct_count")
	}

	if err := query.Scan(&row).Error; err != nil {
		return nil, &entity.StorageError{Op: "stats", Err: err}
	}

	stats := &entity.NotificationStats{
		Total:  row.TotalCount,
		Read:   row.ReadCount,
		Unread: row.TotalCount - row.ReadCount,
	}
	distinct := row.DistinctCount
	if recipientID != "" {
		stats.DistinctKinds = &distinct
	} else {
		stats.DistinctRecipients = &distinct
	}
	return stats, nil
}

func (r *notificationRepository) withSender(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("notifications").
		Select("notifications.*, users.username AS sender_name, users.role AS sender_role").
		Joins("LEFT JOIN users ON users.id = notifications.sender_id")
}
