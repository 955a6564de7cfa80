package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"opsdash/pkg/logger"
	"opsdash/pkg/realtime"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	RelayChannel = "notifications:realtime"

	defaultRelayRetryDelay = 2 * time.Second
)

type relayMessage struct {
	Origin string         `json:"origin"`
	UserID string         `json:"user_id,omitempty"`
	Role   string         `json:"role,omitempty"`
	Event  realtime.Event `json:"event"`
}

// RedisRelay delivers locally and republishes every event on RelayChannel so
// the other instances can reach handles they hold. Messages carry the
// publishing instance id and are ignored by their origin.
type RedisRelay struct {
	client     *redis.Client
	dispatcher *Dispatcher
	origin     string
	logger     *logger.Logger
	retryDelay time.Duration
	ready      chan struct{}
	readyOnce  sync.Once
}

func NewRedisRelay(client *redis.Client, dispatcher *Dispatcher, logger *logger.Logger) *RedisRelay {
	return &RedisRelay{
		client:     client,
		dispatcher: dispatcher,
		origin:     uuid.New().String(),
		logger:     logger,
		retryDelay: defaultRelayRetryDelay,
		ready:      make(chan struct{}),
	}
}

// SendToUser returns the number of handles reached on this instance.
func (r *RedisRelay) SendToUser(ctx context.Context, userID string, evt realtime.Event) int {
	delivered := r.dispatcher.Dispatch(userID, evt)
	r.publish(ctx, relayMessage{UserID: userID, Event: evt})
	return delivered
}

func (r *RedisRelay) BroadcastByRole(ctx context.Context, role string, evt realtime.Event) int {
	delivered := r.dispatcher.BroadcastByRole(role, evt)
	r.publish(ctx, relayMessage{Role: role, Event: evt})
	return delivered
}

func (r *RedisRelay) publish(ctx context.Context, msg relayMessage) {
	msg.Origin = r.origin
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("[RELAY] Failed to encode %s event: %v", msg.Event.Event, err)
		return
	}
	if err := r.client.Publish(ctx, RelayChannel, payload).Err(); err != nil {
		r.logger.Warn("[RELAY] Failed to publish %s event: %v", msg.Event.Event, err)
	}
}

// Ready is closed once Run has an active subscription.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run subscribes to RelayChannel and delivers foreign events to local handles
// until ctx is cancelled. A failed or lost subscription is retried after the
// retry delay.
func (r *RedisRelay) Run(ctx context.Context) error {
	for {
		err := r.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn("[RELAY] Subscription to %s lost, retrying in %s: %v", RelayChannel, r.retryDelay, err)

		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (r *RedisRelay) listen(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, RelayChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", RelayChannel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info("[RELAY] Listening on %s as %s", RelayChannel, r.origin)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(payload string) int {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("[RELAY] Ignoring undecodable message: %v", err)
		return 0
	}
	if msg.Origin == r.origin {
		return 0
	}
	switch {
	case msg.UserID != "":
		return r.dispatcher.Dispatch(msg.UserID, msg.Event)
	case msg.Role != "":
		return r.dispatcher.BroadcastByRole(msg.Role, msg.Event)
	default:
		r.logger.Warn("[RELAY] Ignoring %s event with no recipient", msg.Event.Event)
		return 0
	}
}
