package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type ChatStore interface {
	CreateChat(ctx context.Context, chat *Chat) error
	GetChat(ctx context.Context, userID int64, chatID uuid.UUID) (Chat, error)
	ActiveChat(ctx context.Context, userID int64) (Chat, error)
	ListChats(ctx context.Context, userID int64) ([]Chat, error)
	SetActiveChat(ctx context.Context, userID int64, chatID uuid.UUID) error
	UpdateChat(ctx context.Context, chat Chat) error
	DeleteChat(ctx context.Context, userID int64, chatID uuid.UUID) error

	AddMessage(ctx context.Context, msg *Message) error
	RecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]Message, error)
	Messages(ctx context.Context, chatID uuid.UUID) ([]Message, error)
	ClearMessages(ctx context.Context, chatID uuid.UUID) error
	// TrimMessages deletes everything but the newest keep messages.
	TrimMessages(ctx context.Context, chatID uuid.UUID, keep int) error
}

type FavoriteStore interface {
	AddFavorite(ctx context.Context, fav Favorite) error
	RemoveFavorite(ctx context.Context, userID int64, modelID string) error
	ListFavorites(ctx context.Context, userID int64) ([]Favorite, error)
}

// Store is the full persistence surface used by the bot.
type Store interface {
	ChatStore
	FavoriteStore
	Close() error
}

// ErrNoActiveChat means the user has not created or selected a chat yet.
var ErrNoActiveChat = errors.New("no active chat")
