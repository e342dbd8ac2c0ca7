package sqlstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

type chatRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    int64     `gorm:"index;not null"`
	Model     string    `gorm:"not null"`
	Title     string    `gorm:"not null"`
	Active    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (chatRow) TableName() string { return "chats" }

func (r chatRow) toDomain() domain.Chat {
	return domain.Chat{
		ID:        r.ID,
		UserID:    r.UserID,
		Model:     r.Model,
		Title:     r.Title,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type messageRow struct {
	ID        uint      `gorm:"primaryKey"`
	ChatID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Role      string    `gorm:"size:16;not null"`
	Content   string    `gorm:"not null"`
	Timestamp time.Time `gorm:"not null"`
}

func (messageRow) TableName() string { return "messages" }

func (r messageRow) toDomain() domain.Message {
	return domain.Message{
		ID:        r.ID,
		ChatID:    r.ChatID,
		Role:      r.Role,
		Content:   r.Content,
		Timestamp: r.Timestamp,
	}
}

type favoriteRow struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"`
	ModelID   string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (favoriteRow) TableName() string { return "favorites" }
