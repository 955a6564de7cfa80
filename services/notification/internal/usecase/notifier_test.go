package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"opsdash/pkg/logger"
	"opsdash/pkg/queue"
	"opsdash/pkg/realtime"
	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	target string
	evt    realtime.Event
}

type fakeSender struct {
	mu        sync.Mutex
	toUser    []sentEvent
	toRole    []sentEvent
	delivered int
}

func (s *fakeSender) SendToUser(_ context.Context, userID string, evt realtime.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toUser = append(s.toUser, sentEvent{target: userID, evt: evt})
	return s.delivered
}

func (s *fakeSender) BroadcastByRole(_ context.Context, role string, evt realtime.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toRole = append(s.toRole, sentEvent{target: role, evt: evt})
	return s.delivered
}

type failingStore struct {
	NotificationUseCase
}

func (failingStore) CreateNotification(context.Context, entity.CreateNotificationInput) (*entity.Notification, error) {
	return nil, &entity.StorageError{Op: "insert notification", Err: errors.New("disk full")}
}

func TestNotifier_StoresThenPushes(t *testing.T) {
	f := newStoreFixture(t)
	testutil.SeedUser(t, f.db, "sender-1", "carla", "supervisor")
	sender := &fakeSender{delivered: 1}
	notifier := NewNotifier(f.uc, sender, logger.Discard())

	input := validInput("user-1")
	input.SenderID = "sender-1"
	n, delivered, err := notifier.Notify(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	require.Len(t, sender.toUser, 1)
	assert.Equal(t, "user-1", sender.toUser[0].target)
	assert.Equal(t, realtime.EventNewNotification, sender.toUser[0].evt.Event)

	var payload realtime.NewNotification
	require.NoError(t, sender.toUser[0].evt.Decode(&payload))
	assert.Equal(t, "sender-1", payload.SenderID)
	assert.Equal(t, "carla", payload.SenderName)
	assert.Equal(t, input.Body, payload.Message)

	var embedded entity.Notification
	require.NoError(t, json.Unmarshal(payload.Notification, &embedded))
	assert.Equal(t, n.ID, embedded.ID)

	list, _, err := f.uc.ListForUser(context.Background(), "user-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotifier_OfflineRecipientStillStored(t *testing.T) {
	f := newStoreFixture(t)
	sender := &fakeSender{}
	notifier := NewNotifier(f.uc, sender, logger.Discard())

	n, delivered, err := notifier.Notify(context.Background(), validInput("user-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)

	unread, err := f.uc.CountUnread(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
	assert.NotEmpty(t, n.ID)
}

func TestNotifier_FailedWriteIsNotPushed(t *testing.T) {
	sender := &fakeSender{delivered: 1}
	notifier := NewNotifier(failingStore{}, sender, logger.Discard())

	_, _, err := notifier.Notify(context.Background(), validInput("user-1"))
	assert.True(t, entity.IsStorageError(err))
	assert.Empty(t, sender.toUser)
}

func TestNotifier_BroadcastByRole(t *testing.T) {
	sender := &fakeSender{delivered: 3}
	notifier := NewNotifier(failingStore{}, sender, logger.Discard())

	delivered := notifier.BroadcastByRole(context.Background(), "operator", "admin-1", "Admin", "Drill at noon")
	assert.Equal(t, 3, delivered)
	require.Len(t, sender.toRole, 1)
	assert.Equal(t, "operator", sender.toRole[0].target)

	var payload realtime.NewNotification
	require.NoError(t, sender.toRole[0].evt.Decode(&payload))
	assert.Equal(t, "Drill at noon", payload.Message)
	assert.Equal(t, "Admin", payload.SenderName)
}

func TestNotifier_HandleTask(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	require.NoError(t, f.templates.SaveTemplate(ctx, &entity.Template{
		Code: "alert", TitleTemplate: "Alert {{name}}", BodyTemplate: "{{name}} is down", Active: true,
	}))
	sender := &fakeSender{}
	notifier := NewNotifier(f.uc, sender, logger.Discard())

	require.NoError(t, notifier.HandleTask(queue.Task{
		Type: queue.TaskTypeCreate, RecipientID: "user-1", Title: "t", Body: "b", Priority: "high",
	}))
	require.NoError(t, notifier.HandleTask(queue.Task{
		Type: queue.TaskTypeTemplate, RecipientID: "user-1", TemplateCode: "alert",
		Variables: map[string]interface{}{"name": "db-1"},
	}))

	list, total, err := f.uc.ListForUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "Alert db-1", list[0].Title)
	assert.Equal(t, entity.PriorityHigh, list[1].Priority)
	assert.Len(t, sender.toUser, 2)
}

func TestNotifier_HandleTaskMalformed(t *testing.T) {
	f := newStoreFixture(t)
	notifier := NewNotifier(f.uc, &fakeSender{}, logger.Discard())

	err := notifier.HandleTask(queue.Task{Type: queue.TaskTypeCreate, RecipientID: "user-1"})
	assert.ErrorIs(t, err, queue.ErrMalformedTask)

	err = notifier.HandleTask(queue.Task{Type: queue.TaskTypeTemplate, RecipientID: "user-1", TemplateCode: "ghost"})
	assert.ErrorIs(t, err, queue.ErrMalformedTask)

	storageFailure := NewNotifier(failingStore{}, &fakeSender{}, logger.Discard())
	err = storageFailure.HandleTask(queue.Task{RecipientID: "user-1", Title: "t", Body: "b"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, queue.ErrMalformedTask))
}
