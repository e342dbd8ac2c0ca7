// Package storetest holds the behaviour every domain.Store implementation
// must share. Adapters call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

func Run(t *testing.T, newStore func(t *testing.T) domain.Store) {
	tests := map[string]func(t *testing.T, s domain.Store){
		"chat lifecycle":          testChatLifecycle,
		"active chat switching":   testActiveChat,
		"chats are per user":      testChatOwnership,
		"messages ordered":        testMessagesOrdered,
		"trim keeps newest":       testTrimMessages,
		"delete removes messages": testDeleteChat,
		"favorites":               testFavorites,
	}

	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newChat(userID int64, title string, offset time.Duration) *domain.Chat {
	return &domain.Chat{
		ID:        uuid.New(),
		UserID:    userID,
		Model:     "vendor/model:free",
		Title:     title,
		CreatedAt: base.Add(offset),
		UpdatedAt: base.Add(offset),
	}
}

func testChatLifecycle(t *testing.T, s domain.Store) {
	ctx := context.Background()

	c := newChat(1, "first", 0)
	require.NoError(t, s.CreateChat(ctx, c))

	got, err := s.GetChat(ctx, 1, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, "vendor/model:free", got.Model)

	got.Title = "renamed"
	got.Model = "other/model"
	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.UpdateChat(ctx, got))

	got, err = s.GetChat(ctx, 1, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "other/model", got.Model)

	_, err = s.GetChat(ctx, 1, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = s.UpdateChat(ctx, domain.Chat{ID: uuid.New(), UserID: 1})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testActiveChat(t *testing.T, s domain.Store) {
	ctx := context.Background()

	_, err := s.ActiveChat(ctx, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)

	a := newChat(1, "a", 0)
	b := newChat(1, "b", time.Minute)
	require.NoError(t, s.CreateChat(ctx, a))
	require.NoError(t, s.CreateChat(ctx, b))

	require.NoError(t, s.SetActiveChat(ctx, 1, a.ID))
	active, err := s.ActiveChat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, a.ID, active.ID)

	require.NoError(t, s.SetActiveChat(ctx, 1, b.ID))
	active, err = s.ActiveChat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)

	chats, err := s.ListChats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "a", chats[0].Title)
	assert.False(t, chats[0].Active)
	assert.True(t, chats[1].Active)

	require.ErrorIs(t, s.SetActiveChat(ctx, 1, uuid.New()), domain.ErrNotFound)
}

func testChatOwnership(t *testing.T, s domain.Store) {
	ctx := context.Background()

	mine := newChat(1, "mine", 0)
	require.NoError(t, s.CreateChat(ctx, mine))

	_, err := s.GetChat(ctx, 2, mine.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, s.SetActiveChat(ctx, 2, mine.ID), domain.ErrNotFound)
	require.ErrorIs(t, s.DeleteChat(ctx, 2, mine.ID), domain.ErrNotFound)

	chats, err := s.ListChats(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func addMessages(t *testing.T, s domain.Store, chatID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msg := &domain.Message{
			ChatID:    chatID,
			Role:      role,
			Content:   fmt.Sprintf("m%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.AddMessage(context.Background(), msg))
		require.NotZero(t, msg.ID)
	}
}

func contents(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func testMessagesOrdered(t *testing.T, s domain.Store) {
	ctx := context.Background()
	c := newChat(1, "c", 0)
	require.NoError(t, s.CreateChat(ctx, c))
	addMessages(t, s, c.ID, 5)

	all, err := s.Messages(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, contents(all))
	assert.Equal(t, domain.RoleAssistant, all[1].Role)

	recent, err := s.RecentMessages(ctx, c.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m4"}, contents(recent))

	require.NoError(t, s.ClearMessages(ctx, c.ID))
	all, err = s.Messages(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testTrimMessages(t *testing.T, s domain.Store) {
	ctx := context.Background()
	c := newChat(1, "c", 0)
	other := newChat(1, "other", time.Second)
	require.NoError(t, s.CreateChat(ctx, c))
	require.NoError(t, s.CreateChat(ctx, other))
	addMessages(t, s, c.ID, 6)
	addMessages(t, s, other.ID, 3)

	require.NoError(t, s.TrimMessages(ctx, c.ID, 4))

	all, err := s.Messages(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3", "m4", "m5"}, contents(all))

	untouched, err := s.Messages(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, untouched, 3)

	require.NoError(t, s.TrimMessages(ctx, c.ID, 10))
	all, err = s.Messages(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func testDeleteChat(t *testing.T, s domain.Store) {
	ctx := context.Background()
	c := newChat(1, "c", 0)
	require.NoError(t, s.CreateChat(ctx, c))
	addMessages(t, s, c.ID, 3)

	require.NoError(t, s.DeleteChat(ctx, 1, c.ID))

	_, err := s.GetChat(ctx, 1, c.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	msgs, err := s.Messages(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func testFavorites(t *testing.T, s domain.Store) {
	ctx := context.Background()

	require.NoError(t, s.AddFavorite(ctx, domain.Favorite{UserID: 1, ModelID: "a/x", CreatedAt: base}))
	require.NoError(t, s.AddFavorite(ctx, domain.Favorite{UserID: 1, ModelID: "b/y", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, s.AddFavorite(ctx, domain.Favorite{UserID: 1, ModelID: "a/x", CreatedAt: base.Add(2 * time.Second)}))
	require.NoError(t, s.AddFavorite(ctx, domain.Favorite{UserID: 2, ModelID: "c/z", CreatedAt: base}))

	favs, err := s.ListFavorites(ctx, 1)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, "a/x", favs[0].ModelID)
	assert.Equal(t, "b/y", favs[1].ModelID)

	require.NoError(t, s.RemoveFavorite(ctx, 1, "a/x"))
	require.NoError(t, s.RemoveFavorite(ctx, 1, "missing/model"))

	favs, err = s.ListFavorites(ctx, 1)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "b/y", favs[0].ModelID)
}
