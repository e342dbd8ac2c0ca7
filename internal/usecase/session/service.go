// Package session manages the named chats a user switches between.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

const (
	maxTitleRunes = 64
	activeMark    = "• "
)

var (
	ErrEmptyTitle   = errors.New("empty chat title")
	ErrChatNotFound = errors.New("chat not found")
)

type Service struct {
	store        domain.ChatStore
	defaultModel string
	log          *slog.Logger
	now          func() time.Time
}

func NewService(store domain.ChatStore, defaultModel string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		defaultModel: defaultModel,
		log:          logger,
		now:          time.Now,
	}
}

// Create stores a new chat and makes it the active one. An empty model
// means the default model.
func (s *Service) Create(ctx context.Context, userID int64, title, model string) (domain.Chat, error) {
	title = NormalizeTitle(title)
	if title == "" {
		title = domain.DefaultChatTitle
	}
	if model == "" {
		model = s.defaultModel
	}

	now := s.now()
	c := domain.Chat{
		UserID:    userID,
		Model:     model,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateChat(ctx, &c); err != nil {
		return domain.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	if err := s.store.SetActiveChat(ctx, userID, c.ID); err != nil {
		return domain.Chat{}, fmt.Errorf("activate chat: %w", err)
	}
	c.Active = true

	s.log.Info("chat created", "user_id", userID, "chat_id", c.ID, "model", model)
	return c, nil
}

// List returns the user's chats in creation order.
func (s *Service) List(ctx context.Context, userID int64) ([]domain.Chat, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

func (s *Service) Active(ctx context.Context, userID int64) (domain.Chat, error) {
	c, err := s.store.ActiveChat(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Chat{}, domain.ErrNoActiveChat
	}
	if err != nil {
		return domain.Chat{}, fmt.Errorf("load active chat: %w", err)
	}
	return c, nil
}

func (s *Service) Switch(ctx context.Context, userID int64, chatID uuid.UUID) (domain.Chat, error) {
	err := s.store.SetActiveChat(ctx, userID, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return domain.Chat{}, fmt.Errorf("switch chat: %w", err)
	}
	return s.Active(ctx, userID)
}

// SwitchByTitle activates the chat named by a chat-list button label
// ("2. Title", with or without the active mark) or by its plain title.
func (s *Service) SwitchByTitle(ctx context.Context, userID int64, label string) (domain.Chat, error) {
	chats, err := s.List(ctx, userID)
	if err != nil {
		return domain.Chat{}, err
	}

	label = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(label), strings.TrimSpace(activeMark)))
	if num, rest, ok := strings.Cut(label, ". "); ok {
		if n, err := strconv.Atoi(num); err == nil && n >= 1 && n <= len(chats) && chats[n-1].Title == rest {
			return s.Switch(ctx, userID, chats[n-1].ID)
		}
	}
	for _, c := range chats {
		if c.Title == label {
			return s.Switch(ctx, userID, c.ID)
		}
	}
	return domain.Chat{}, ErrChatNotFound
}

// Rename changes the title of the active chat.
func (s *Service) Rename(ctx context.Context, userID int64, title string) (domain.Chat, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return domain.Chat{}, ErrEmptyTitle
	}
	c, err := s.Active(ctx, userID)
	if err != nil {
		return domain.Chat{}, err
	}
	c.Title = title
	c.UpdatedAt = s.now()
	if err := s.store.UpdateChat(ctx, c); err != nil {
		return domain.Chat{}, fmt.Errorf("rename chat: %w", err)
	}
	return c, nil
}

// Delete removes the active chat with its history. The most recently used
// remaining chat becomes active; next is false when none is left.
func (s *Service) Delete(ctx context.Context, userID int64) (deleted domain.Chat, next domain.Chat, ok bool, err error) {
	deleted, err = s.Active(ctx, userID)
	if err != nil {
		return domain.Chat{}, domain.Chat{}, false, err
	}
	if err := s.store.DeleteChat(ctx, userID, deleted.ID); err != nil {
		return domain.Chat{}, domain.Chat{}, false, fmt.Errorf("delete chat: %w", err)
	}
	s.log.Info("chat deleted", "user_id", userID, "chat_id", deleted.ID)

	rest, err := s.List(ctx, userID)
	if err != nil {
		return deleted, domain.Chat{}, false, err
	}
	if len(rest) == 0 {
		return deleted, domain.Chat{}, false, nil
	}

	latest := rest[0]
	for _, c := range rest[1:] {
		if c.UpdatedAt.After(latest.UpdatedAt) {
			latest = c
		}
	}
	next, err = s.Switch(ctx, userID, latest.ID)
	if err != nil {
		return deleted, domain.Chat{}, false, err
	}
	return deleted, next, true, nil
}

// SetModel binds model to the active chat, creating a chat when the user
// has none.
func (s *Service) SetModel(ctx context.Context, userID int64, model string) (domain.Chat, error) {
	c, err := s.Active(ctx, userID)
	if errors.Is(err, domain.ErrNoActiveChat) {
		return s.Create(ctx, userID, "", model)
	}
	if err != nil {
		return domain.Chat{}, err
	}

	c.Model = model
	c.UpdatedAt = s.now()
	if err := s.store.UpdateChat(ctx, c); err != nil {
		return domain.Chat{}, fmt.Errorf("set model: %w", err)
	}
	s.log.Info("model selected", "user_id", userID, "chat_id", c.ID, "model", model)
	return c, nil
}

// NormalizeTitle collapses whitespace and caps the title length.
func NormalizeTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = strings.TrimSpace(string(runes[:maxTitleRunes]))
	}
	return title
}

// ButtonLabel is the chat-list entry for chats[i].
func ButtonLabel(i int, c domain.Chat) string {
	label := fmt.Sprintf("%d. %s", i+1, c.Title)
	if c.Active {
		label = activeMark + label
	}
	return label
}
