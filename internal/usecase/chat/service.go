package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Purpose-arch/tgbotaimult/internal/config"
	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrNoActiveChat = domain.ErrNoActiveChat
	ErrEmptyHistory = errors.New("chat history is empty")

	// Provider failures. Adapters wrap their errors with one of these.
	ErrRateLimited   = errors.New("provider rate limit")
	ErrUnavailable   = errors.New("provider unavailable")
	ErrProviderFault = errors.New("provider error")
)

const titleRunes = 40

type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)
}

// Stream yields text deltas until Recv returns io.EOF.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type CompletionRequest struct {
	Model               string
	Messages            []Message
	MaxCompletionTokens int
}

type Message struct {
	Role string
	Text string
}

// Sink receives the answer as it is produced.
type Sink interface {
	Push(ctx context.Context, delta string) error
}

type Service struct {
	store  domain.ChatStore
	client Client
	cfg    config.Config
	log    *slog.Logger
	now    func() time.Time
}

func NewService(store domain.ChatStore, client Client, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		client: client,
		cfg:    cfg,
		log:    logger,
		now:    time.Now,
	}
}

// HandleMessage sends text with the active chat's recent history to the
// model, feeding the answer into sink. On success both turns are stored and
// the history is trimmed. A stream that breaks midway returns the text
// received so far together with the error.
func (s *Service) HandleMessage(ctx context.Context, userID int64, text string, sink Sink) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	active, err := s.activeChat(ctx, userID)
	if err != nil {
		return "", err
	}
	askedAt := s.now()

	history, err := s.store.RecentMessages(ctx, active.ID, s.cfg.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	req := CompletionRequest{
		Model:               s.modelFor(active),
		Messages:            s.buildMessages(history, text),
		MaxCompletionTokens: s.cfg.MaxCompletionTokens,
	}

	var answer string
	if s.cfg.StreamResponses {
		answer, err = s.stream(ctx, req, sink)
	} else {
		answer, err = s.client.Complete(ctx, req)
		if err == nil && answer != "" {
			err = sink.Push(ctx, answer)
		}
	}
	if err != nil {
		return answer, err
	}
	if strings.TrimSpace(answer) == "" {
		return "", nil
	}

	s.saveTurn(ctx, active, text, answer, askedAt)
	return answer, nil
}

func (s *Service) stream(ctx context.Context, req CompletionRequest, sink Sink) (string, error) {
	stream, err := s.client.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return answer.String(), nil
		}
		if err != nil {
			return answer.String(), err
		}
		if delta == "" {
			continue
		}
		answer.WriteString(delta)
		if err := sink.Push(ctx, delta); err != nil {
			return answer.String(), err
		}
	}
}

func (s *Service) buildMessages(history []domain.Message, text string) []Message {
	messages := make([]Message, 0, len(history)+2)
	if prompt := strings.TrimSpace(s.cfg.AssistantPrompt); prompt != "" {
		messages = append(messages, Message{
			Role: domain.RoleSystem,
			Text: prompt,
		})
	}
	for _, h := range history {
		messages = append(messages, Message{
			Role: h.Role,
			Text: h.Content,
		})
	}
	return append(messages, Message{
		Role: domain.RoleUser,
		Text: text,
	})
}

// saveTurn stores the exchange. The answer was already delivered, so
// failures here are only logged.
func (s *Service) saveTurn(ctx context.Context, active domain.Chat, question, answer string, askedAt time.Time) {
	turn := []*domain.Message{
		{ChatID: active.ID, Role: domain.RoleUser, Content: question, Timestamp: askedAt},
		{ChatID: active.ID, Role: domain.RoleAssistant, Content: answer, Timestamp: s.now()},
	}
	for _, msg := range turn {
		if err := s.store.AddMessage(ctx, msg); err != nil {
			s.log.Error("save message", "chat_id", active.ID, "role", msg.Role, "error", err)
			return
		}
	}

	if active.Title == domain.DefaultChatTitle {
		active.Title = titleFrom(question)
	}
	active.UpdatedAt = s.now()
	if err := s.store.UpdateChat(ctx, active); err != nil {
		s.log.Warn("touch chat", "chat_id", active.ID, "error", err)
	}

	if err := s.store.TrimMessages(ctx, active.ID, s.cfg.HistoryLimit); err != nil {
		s.log.Warn("trim history", "chat_id", active.ID, "error", err)
	}
}

// ClearHistory removes every message of the active chat.
func (s *Service) ClearHistory(ctx context.Context, userID int64) error {
	active, err := s.activeChat(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.ClearMessages(ctx, active.ID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *Service) activeChat(ctx context.Context, userID int64) (domain.Chat, error) {
	active, err := s.store.ActiveChat(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Chat{}, ErrNoActiveChat
	}
	if err != nil {
		return domain.Chat{}, fmt.Errorf("load active chat: %w", err)
	}
	return active, nil
}

func (s *Service) modelFor(c domain.Chat) string {
	if c.Model != "" {
		return c.Model
	}
	return s.cfg.DefaultModel
}

func titleFrom(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	runes := []rune(title)
	if len(runes) > titleRunes {
		title = strings.TrimSpace(string(runes[:titleRunes])) + "…"
	}
	if title == "" {
		return domain.DefaultChatTitle
	}
	return title
}
