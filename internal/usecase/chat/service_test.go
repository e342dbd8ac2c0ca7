package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Purpose-arch/tgbotaimult/internal/adapter/memory"
	"github.com/Purpose-arch/tgbotaimult/internal/config"
	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

type fakeStream struct {
	deltas []string
	err    error
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeClient struct {
	answer    string
	deltas    []string
	streamErr error
	err       error

	requests []CompletionRequest
	stream   *fakeStream
}

func (c *fakeClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	c.requests = append(c.requests, req)
	return c.answer, c.err
}

func (c *fakeClient) Stream(_ context.Context, req CompletionRequest) (Stream, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	c.stream = &fakeStream{deltas: c.deltas, err: c.streamErr}
	return c.stream, nil
}

type recordingSink struct {
	deltas []string
}

func (s *recordingSink) Push(_ context.Context, delta string) error {
	s.deltas = append(s.deltas, delta)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		DefaultModel:    "default/model:free",
		AssistantPrompt: "be brief",
		HistoryLimit:    4,
		StreamResponses: true,
	}
}

func newTestService(t *testing.T, client Client, cfg config.Config) (*Service, *memory.Store, domain.Chat) {
	t.Helper()
	store := memory.NewStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	c := domain.Chat{
		ID:        uuid.New(),
		UserID:    7,
		Model:     "vendor/model:free",
		Title:     domain.DefaultChatTitle,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateChat(context.Background(), &c))

	svc := NewService(store, client, cfg, nil)
	svc.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return svc, store, c
}

func TestHandleMessageStreams(t *testing.T) {
	client := &fakeClient{deltas: []string{"Hel", "lo", "", "!"}}
	svc, store, c := newTestService(t, client, testConfig())
	sink := &recordingSink{}

	answer, err := svc.HandleMessage(context.Background(), 7, "  hi there  ", sink)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", answer)
	assert.Equal(t, []string{"Hel", "lo", "!"}, sink.deltas)
	assert.True(t, client.stream.closed)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "vendor/model:free", req.Model)
	assert.Equal(t, []Message{
		{Role: domain.RoleSystem, Text: "be brief"},
		{Role: domain.RoleUser, Text: "hi there"},
	}, req.Messages)

	msgs, err := store.Messages(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, "Hello!", msgs[1].Content)

	updated, err := store.GetChat(context.Background(), 7, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi there", updated.Title)
	assert.True(t, updated.UpdatedAt.After(c.UpdatedAt))
}

func TestHandleMessageSendsTrailingHistory(t *testing.T) {
	client := &fakeClient{deltas: []string{"ok"}}
	svc, store, c := newTestService(t, client, testConfig())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, store.AddMessage(ctx, &domain.Message{ChatID: c.ID, Role: role, Content: string(rune('a' + i))}))
	}

	_, err := svc.HandleMessage(ctx, 7, "next", &recordingSink{})
	require.NoError(t, err)

	got := client.requests[0].Messages
	require.Len(t, got, 6)
	assert.Equal(t, "c", got[1].Text)
	assert.Equal(t, "f", got[4].Text)
	assert.Equal(t, "next", got[5].Text)

	msgs, err := store.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "ok", msgs[3].Content)
}

func TestHandleMessageNonStreaming(t *testing.T) {
	cfg := testConfig()
	cfg.StreamResponses = false
	client := &fakeClient{answer: "whole answer"}
	svc, _, _ := newTestService(t, client, cfg)
	sink := &recordingSink{}

	answer, err := svc.HandleMessage(context.Background(), 7, "q", sink)
	require.NoError(t, err)
	assert.Equal(t, "whole answer", answer)
	assert.Equal(t, []string{"whole answer"}, sink.deltas)
	assert.Nil(t, client.stream)
}

func TestHandleMessageErrors(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		svc, _, _ := newTestService(t, &fakeClient{}, testConfig())
		_, err := svc.HandleMessage(context.Background(), 7, " \n ", &recordingSink{})
		require.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("no active chat", func(t *testing.T) {
		svc, _, _ := newTestService(t, &fakeClient{}, testConfig())
		_, err := svc.HandleMessage(context.Background(), 99, "hi", &recordingSink{})
		require.ErrorIs(t, err, ErrNoActiveChat)
	})

	t.Run("provider error is not persisted", func(t *testing.T) {
		client := &fakeClient{err: ErrRateLimited}
		svc, store, c := newTestService(t, client, testConfig())
		_, err := svc.HandleMessage(context.Background(), 7, "hi", &recordingSink{})
		require.ErrorIs(t, err, ErrRateLimited)

		msgs, err := store.Messages(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("broken stream returns partial text", func(t *testing.T) {
		client := &fakeClient{deltas: []string{"par", "tial"}, streamErr: ErrUnavailable}
		svc, store, c := newTestService(t, client, testConfig())
		answer, err := svc.HandleMessage(context.Background(), 7, "hi", &recordingSink{})
		require.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, "partial", answer)

		msgs, err := store.Messages(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("empty answer is not persisted", func(t *testing.T) {
		svc, store, c := newTestService(t, &fakeClient{deltas: []string{" "}}, testConfig())
		answer, err := svc.HandleMessage(context.Background(), 7, "hi", &recordingSink{})
		require.NoError(t, err)
		assert.Empty(t, answer)

		msgs, err := store.Messages(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestHandleMessageFallsBackToDefaultModel(t *testing.T) {
	client := &fakeClient{deltas: []string{"x"}}
	svc, store, c := newTestService(t, client, testConfig())
	c.Model = ""
	require.NoError(t, store.UpdateChat(context.Background(), c))

	_, err := svc.HandleMessage(context.Background(), 7, "hi", &recordingSink{})
	require.NoError(t, err)
	assert.Equal(t, "default/model:free", client.requests[0].Model)
}

func TestTitleFrom(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"  multi\nline\ttext ", "multi line text"},
		{strings.Repeat("я", 45), strings.Repeat("я", 40) + "…"},
		{"   ", domain.DefaultChatTitle},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, titleFrom(tt.in), tt.in)
	}
}

func TestClearHistory(t *testing.T) {
	svc, store, c := newTestService(t, &fakeClient{deltas: []string{"a"}}, testConfig())
	ctx := context.Background()
	_, err := svc.HandleMessage(ctx, 7, "q", &recordingSink{})
	require.NoError(t, err)

	require.NoError(t, svc.ClearHistory(ctx, 7))
	msgs, err := store.Messages(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.ErrorIs(t, svc.ClearHistory(ctx, 8), ErrNoActiveChat)
}

func TestExport(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClient{deltas: []string{"four"}}, testConfig())
	ctx := context.Background()

	_, err := svc.Export(ctx, 7, "txt")
	require.ErrorIs(t, err, ErrEmptyHistory)

	_, err = svc.HandleMessage(ctx, 7, "two plus two", &recordingSink{})
	require.NoError(t, err)

	txt, err := svc.Export(ctx, 7, "")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", txt.ContentType)
	assert.True(t, strings.HasSuffix(txt.FileName, ".txt"))
	assert.Contains(t, string(txt.Data), "Chat: two plus two\nModel: vendor/model:free")
	assert.Contains(t, string(txt.Data), "user:\ntwo plus two\n")
	assert.Contains(t, string(txt.Data), "assistant:\nfour\n")

	js, err := svc.Export(ctx, 7, "JSON")
	require.NoError(t, err)
	assert.Equal(t, "application/json", js.ContentType)
	var decoded exportedChat
	require.NoError(t, json.Unmarshal(js.Data, &decoded))
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "four", decoded.Messages[1].Content)

	_, err = svc.Export(ctx, 7, "pdf")
	require.True(t, errors.Is(err, ErrUnknownFormat))

	_, err = svc.Export(ctx, 8, "txt")
	require.ErrorIs(t, err, ErrNoActiveChat)
}
