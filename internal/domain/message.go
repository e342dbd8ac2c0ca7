package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID        uint
	ChatID    uuid.UUID
	Role      string
	Content   string
	Timestamp time.Time
}
