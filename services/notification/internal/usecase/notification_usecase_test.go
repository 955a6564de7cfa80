package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"opsdash/pkg/logger"
	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/repo/persistent"
	"opsdash/services/notification/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type steppingClock struct {
	t time.Time
}

func (c *steppingClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type storeFixture struct {
	db        *gorm.DB
	uc        NotificationUseCase
	templates *TemplateEngine
	clock     *steppingClock
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	db := testutil.NewDB(t)
	templates := NewTemplateEngine(persistent.NewTemplateRepository(db))
	uc := NewNotificationUseCase(persistent.NewNotificationRepository(db), templates, logger.Discard())
	clock := &steppingClock{t: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	uc.(*notificationUseCase).now = clock.Now
	return &storeFixture{db: db, uc: uc, templates: templates, clock: clock}
}

func validInput(recipientID string) entity.CreateNotificationInput {
	return entity.CreateNotificationInput{
		RecipientID: recipientID,
		Title:       "Report ready",
		Body:        "The weekly report is ready",
	}
}

func TestCreateNotification_Defaults(t *testing.T) {
	f := newStoreFixture(t)

	n, err := f.uc.CreateNotification(context.Background(), validInput("user-1"))
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, entity.KindInfo, n.Kind)
	assert.Equal(t, entity.DefaultCategory, n.Category)
	assert.Equal(t, entity.DefaultIcon, n.Icon)
	assert.Equal(t, entity.PriorityNormal, n.Priority)
	assert.Equal(t, entity.StateActive, n.State)
	assert.NotNil(t, n.ExtraData)
	assert.Empty(t, n.ExtraData)
	assert.Nil(t, n.ReadAt)
	assert.Nil(t, n.SenderID)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestCreateNotification_Validation(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	cases := map[string]entity.CreateNotificationInput{
		"recipient_id": {Title: "t", Body: "b"},
		"title":        {RecipientID: "u", Body: "b"},
		"body":         {RecipientID: "u", Title: "t", Body: "   "},
		"kind":         {RecipientID: "u", Title: "t", Body: "b", Kind: entity.NotificationKind(strings.Repeat("k", entity.MaxKindLength+1))},
		"priority":     {RecipientID: "u", Title: "t", Body: "b", Priority: "urgent"},
	}
	for field, input := range cases {
		_, err := f.uc.CreateNotification(ctx, input)
		var ve *entity.ValidationError
		require.ErrorAs(t, err, &ve, field)
		assert.Equal(t, field, ve.Field)
	}

	stats, err := f.uc.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
}

func TestCreateNotification_AcceptsCustomKind(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	input := validInput("user-1")
	input.Kind = "alert"
	n, err := f.uc.CreateNotification(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationKind("alert"), n.Kind)

	stored, err := f.uc.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationKind("alert"), stored.Kind)
}

func TestCreateThenList_NewestFirstAndUnreadGrows(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.uc.CreateNotification(ctx, validInput("user-1"))
	require.NoError(t, err)
	before, err := f.uc.Stats(ctx, "user-1")
	require.NoError(t, err)

	created, err := f.uc.CreateNotification(ctx, validInput("user-1"))
	require.NoError(t, err)

	list, total, err := f.uc.ListForUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, int64(2), total)

	after, err := f.uc.Stats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, before.Unread+1, after.Unread)
}

func TestListForUser_JoinsSender(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.db, "sender-1", "carla", "supervisor")

	input := validInput("user-1")
	input.SenderID = "sender-1"
	_, err := f.uc.CreateNotification(ctx, input)
	require.NoError(t, err)

	list, _, err := f.uc.ListForUser(ctx, "user-1", 0, -5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "carla", list[0].SenderName)
	assert.Equal(t, "supervisor", list[0].SenderRole)
}

func TestMarkRead_Idempotent(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	n, err := f.uc.CreateNotification(ctx, validInput("user-1"))
	require.NoError(t, err)

	changed, err := f.uc.MarkRead(ctx, n.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, changed)
	first, err := f.uc.GetByID(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ReadAt)

	changed, err = f.uc.MarkRead(ctx, n.ID, "user-1")
	require.NoError(t, err)
	assert.False(t, changed)
	second, err := f.uc.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, first.ReadAt.Equal(*second.ReadAt))
}

func TestMarkRead_WrongOwnerOrMissing(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	n, err := f.uc.CreateNotification(ctx, validInput("user-1"))
	require.NoError(t, err)

	changed, err := f.uc.MarkRead(ctx, n.ID, "user-2")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.uc.MarkRead(ctx, "00000000-0000-0000-0000-000000000000", "user-1")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMarkAllRead_ZeroesUnread(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.uc.CreateNotification(ctx, validInput("user-1"))
		require.NoError(t, err)
	}
	list, _, err := f.uc.ListForUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	_, err = f.uc.MarkRead(ctx, list[0].ID, "user-1")
	require.NoError(t, err)

	before, err := f.uc.Stats(ctx, "user-1")
	require.NoError(t, err)

	count, err := f.uc.MarkAllRead(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	after, err := f.uc.Stats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.Unread)
	assert.GreaterOrEqual(t, before.Unread, after.Unread)

	count, err = f.uc.MarkAllRead(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	unread, err := f.uc.CountUnread(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestSoftDelete_HidesButRetains(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	n, err := f.uc.CreateNotification(ctx, validInput("user-1"))
	require.NoError(t, err)

	changed, err := f.uc.SoftDelete(ctx, n.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.uc.SoftDelete(ctx, n.ID, "user-1")
	require.NoError(t, err)
	assert.False(t, changed)

	list, _, err := f.uc.ListForUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := f.uc.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StateDeleted, got.State)
}

func TestGetForUser_HidesOtherRecipients(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	n, err := f.uc.CreateNotification(ctx, validInput("user-1"))
	require.NoError(t, err)

	got, err := f.uc.GetForUser(ctx, n.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)

	_, err = f.uc.GetForUser(ctx, n.ID, "user-2")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestRenderFromTemplate(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	require.NoError(t, f.templates.SaveTemplate(ctx, &entity.Template{
		Code:          "shift",
		TitleTemplate: "Hola {{nombre}}",
		BodyTemplate:  "Turno en {{sala}}",
		DefaultKind:   entity.KindWarning,
		DefaultIcon:   "clock",
		Category:      "shifts",
		Active:        true,
	}))

	vars := map[string]interface{}{"nombre": "Ana", "sala": "B"}
	n, err := f.uc.RenderFromTemplate(ctx, "shift", "user-1", vars, entity.CreateNotificationInput{Priority: entity.PriorityHigh})
	require.NoError(t, err)

	assert.Equal(t, "Hola Ana", n.Title)
	assert.Equal(t, "Turno en B", n.Body)
	assert.Equal(t, entity.KindWarning, n.Kind)
	assert.Equal(t, "clock", n.Icon)
	assert.Equal(t, "shifts", n.Category)
	assert.Equal(t, entity.PriorityHigh, n.Priority)
	assert.Equal(t, "Ana", n.ExtraData["nombre"])

	vars["nombre"] = "changed"
	assert.Equal(t, "Ana", n.ExtraData["nombre"])

	stored, err := f.uc.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", stored.ExtraData["sala"])
}

func TestRenderFromTemplate_NotFound(t *testing.T) {
	f := newStoreFixture(t)

	_, err := f.uc.RenderFromTemplate(context.Background(), "nope", "user-1", nil, entity.CreateNotificationInput{})
	assert.ErrorIs(t, err, entity.ErrTemplateNotFound)
}
