package domain

import (
	"time"

	"github.com/google/uuid"
)

const DefaultChatTitle = "New chat"

// Chat is a titled conversation owned by a Telegram user and bound to one
// model. At most one chat per user is active at a time.
type Chat struct {
	ID        uuid.UUID
	UserID    int64
	Model     string
	Title     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Model struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type Favorite struct {
	UserID    int64
	ModelID   string
	CreatedAt time.Time
}

// Export is a rendered chat history ready to be sent as a file.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}
