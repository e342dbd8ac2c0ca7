package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Purpose-arch/tgbotaimult/internal/adapter/memory"
	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(memory.NewStore(), "default/model:free", nil)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	return svc
}

func TestCreateActivates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, 1, "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultChatTitle, first.Title)
	assert.Equal(t, "default/model:free", first.Model)
	assert.True(t, first.Active)

	second, err := svc.Create(ctx, 1, "  Work   notes ", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "Work notes", second.Title)

	active, err := svc.Active(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	chats, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.False(t, chats[0].Active)
	assert.True(t, chats[1].Active)
}

func TestActiveWithoutChats(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Active(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrNoActiveChat)
}

func TestSwitch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, 1, "alpha", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, "beta", "")
	require.NoError(t, err)

	got, err := svc.Switch(ctx, 1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Title)

	_, err = svc.Switch(ctx, 1, uuid.New())
	require.ErrorIs(t, err, ErrChatNotFound)
	_, err = svc.Switch(ctx, 2, a.ID)
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestSwitchByTitle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, title := range []string{"alpha", "beta", "alpha"} {
		_, err := svc.Create(ctx, 1, title, "")
		require.NoError(t, err)
	}
	chats, err := svc.List(ctx, 1)
	require.NoError(t, err)

	got, err := svc.SwitchByTitle(ctx, 1, "3. alpha")
	require.NoError(t, err)
	assert.Equal(t, chats[2].ID, got.ID)

	got, err = svc.SwitchByTitle(ctx, 1, "• 1. alpha")
	require.NoError(t, err)
	assert.Equal(t, chats[0].ID, got.ID)

	got, err = svc.SwitchByTitle(ctx, 1, "beta")
	require.NoError(t, err)
	assert.Equal(t, chats[1].ID, got.ID)

	_, err = svc.SwitchByTitle(ctx, 1, "2. gamma")
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestRename(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Rename(ctx, 1, "x")
	require.ErrorIs(t, err, domain.ErrNoActiveChat)

	_, err = svc.Create(ctx, 1, "", "")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, 1, "   ")
	require.ErrorIs(t, err, ErrEmptyTitle)

	got, err := svc.Rename(ctx, 1, strings.Repeat("ж", 70))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ж", 64), got.Title)

	active, err := svc.Active(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, got.Title, active.Title)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, 1, "a", "")
	require.NoError(t, err)
	b, err := svc.Create(ctx, 1, "b", "")
	require.NoError(t, err)
	c, err := svc.Create(ctx, 1, "c", "")
	require.NoError(t, err)

	// touch a so it is the most recently used after c
	_, err = svc.Switch(ctx, 1, a.ID)
	require.NoError(t, err)
	_, err = svc.Rename(ctx, 1, "a2")
	require.NoError(t, err)
	_, err = svc.Switch(ctx, 1, c.ID)
	require.NoError(t, err)

	deleted, next, ok, err := svc.Delete(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, c.ID, deleted.ID)
	require.True(t, ok)
	assert.Equal(t, a.ID, next.ID)

	_, next, ok, err = svc.Delete(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b.ID, next.ID)

	_, _, ok, err = svc.Delete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = svc.Delete(ctx, 1)
	require.ErrorIs(t, err, domain.ErrNoActiveChat)
}

func TestSetModel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.SetModel(ctx, 1, "vendor/x:free")
	require.NoError(t, err)
	assert.Equal(t, "vendor/x:free", created.Model)
	assert.Equal(t, domain.DefaultChatTitle, created.Title)

	updated, err := svc.SetModel(ctx, 1, "vendor/y:free")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	active, err := svc.Active(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "vendor/y:free", active.Model)
}

func TestButtonLabel(t *testing.T) {
	assert.Equal(t, "1. one", ButtonLabel(0, domain.Chat{Title: "one"}))
	assert.Equal(t, "• 3. three", ButtonLabel(2, domain.Chat{Title: "three", Active: true}))
}
