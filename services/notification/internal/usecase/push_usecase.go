package usecase

import (
	"context"
	"net/url"
	"strings"
	"time"

	"opsdash/pkg/logger"
	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/repo/persistent"
)

// PushUseCase keeps the device subscription registry. Sending through a push
// gateway is someone else's job.
type PushUseCase interface {
	UpsertPushSubscription(ctx context.Context, userID, endpoint string, keys entity.PushKeys, deviceLabel, browserLabel string) (*entity.PushSubscription, error)
	ListActive(ctx context.Context, userID string) ([]entity.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID, endpoint string) (bool, error)
}

type pushUseCase struct {
	pushRepo persistent.PushSubscriptionRepository
	logger   *logger.Logger
	now      func() time.Time
}

func NewPushUseCase(pushRepo persistent.PushSubscriptionRepository, logger *logger.Logger) PushUseCase {
	return &pushUseCase{
		pushRepo: pushRepo,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *pushUseCase) UpsertPushSubscription(ctx context.Context, userID, endpoint string, keys entity.PushKeys, deviceLabel, browserLabel string) (*entity.PushSubscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &entity.ValidationError{Field: "user_id", Reason: "is required"}
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, &entity.ValidationError{Field: "endpoint", Reason: "is required"}
	}
	if u, err := url.Parse(endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, &entity.ValidationError{Field: "endpoint", Reason: "must be an absolute https URL"}
	}
	if keys.P256dh == "" || keys.Auth == "" {
		return nil, &entity.ValidationError{Field: "keys", Reason: "p256dh and auth are required"}
	}

	sub := &entity.PushSubscription{
		UserID:       userID,
		Endpoint:     endpoint,
		P256dhKey:    keys.P256dh,
		AuthKey:      keys.Auth,
		DeviceLabel:  deviceLabel,
		BrowserLabel: browserLabel,
		Active:       true,
		SubscribedAt: uc.now(),
	}
	if err := uc.pushRepo.Upsert(ctx, sub); err != nil {
		uc.logger.Error("[PUSH] Failed to upsert subscription for %s: %v", userID, err)
		return nil, err
	}

	uc.logger.Info("[PUSH] Subscription stored for %s (%s/%s)", userID, deviceLabel, browserLabel)
	return sub, nil
}

func (uc *pushUseCase) ListActive(ctx context.Context, userID string) ([]entity.PushSubscription, error) {
	return uc.pushRepo.ListActive(ctx, userID)
}

func (uc *pushUseCase) Unsubscribe(ctx context.Context, userID, endpoint string) (bool, error) {
	return uc.pushRepo.Deactivate(ctx, userID, strings.TrimSpace(endpoint))
}
