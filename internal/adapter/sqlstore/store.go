package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

// Store persists chats, messages and favorites through gorm.
type Store struct {
	db *gorm.DB
}

// Open connects with the given driver ("sqlite" or "postgres") and brings
// the schema up to date.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// sqlite allows a single writer, and every :memory: connection is a
		// separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s, err := NewFromDB(db)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("database ready", "driver", driver)
	}
	return s, nil
}

// NewFromDB wraps an open connection and runs migrations.
func NewFromDB(db *gorm.DB) (*Store, error) {
	if err := migrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) CreateChat(ctx context.Context, chat *domain.Chat) error {
	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	row := chatRow{
		ID:        chat.ID,
		UserID:    chat.UserID,
		Model:     chat.Model,
		Title:     chat.Title,
		Active:    chat.Active,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) GetChat(ctx context.Context, userID int64, chatID uuid.UUID) (domain.Chat, error) {
	var row chatRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", chatID, userID).
		First(&row).Error
	if err != nil {
		return domain.Chat{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ActiveChat(ctx context.Context, userID int64) (domain.Chat, error) {
	var row chatRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		return domain.Chat{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListChats(ctx context.Context, userID int64) ([]domain.Chat, error) {
	var rows []chatRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	chats := make([]domain.Chat, 0, len(rows))
	for _, r := range rows {
		chats = append(chats, r.toDomain())
	}
	return chats, nil
}

func (s *Store) SetActiveChat(ctx context.Context, userID int64, chatID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row chatRow
		if err := tx.Where("id = ? AND user_id = ?", chatID, userID).First(&row).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Model(&chatRow{}).
			Where("user_id = ? AND id <> ?", userID, chatID).
			UpdateColumn("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&chatRow{}).
			Where("id = ?", chatID).
			UpdateColumn("active", true).Error
	})
}

func (s *Store) UpdateChat(ctx context.Context, chat domain.Chat) error {
	res := s.db.WithContext(ctx).
		Model(&chatRow{}).
		Where("id = ? AND user_id = ?", chat.ID, chat.UserID).
		UpdateColumns(map[string]any{
			"model":      chat.Model,
			"title":      chat.Title,
			"updated_at": chat.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteChat(ctx context.Context, userID int64, chatID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", chatID, userID).Delete(&chatRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Where("chat_id = ?", chatID).Delete(&messageRow{}).Error
	})
}

func (s *Store) AddMessage(ctx context.Context, msg *domain.Message) error {
	row := messageRow{
		ChatID:    msg.ChatID,
		Role:      msg.Role,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	msg.ID = row.ID
	return nil
}

func (s *Store) RecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]domain.Message, error) {
	var rows []messageRow
	q := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, len(rows))
	for i, r := range rows {
		msgs[len(rows)-1-i] = r.toDomain()
	}
	return msgs, nil
}

func (s *Store) Messages(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toDomain())
	}
	return msgs, nil
}

func (s *Store) ClearMessages(ctx context.Context, chatID uuid.UUID) error {
	return s.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&messageRow{}).Error
}

func (s *Store) TrimMessages(ctx context.Context, chatID uuid.UUID, keep int) error {
	if keep <= 0 {
		return s.ClearMessages(ctx, chatID)
	}
	return s.db.WithContext(ctx).Exec(
		`DELETE FROM messages WHERE chat_id = ? AND id NOT IN (
			SELECT id FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?
		)`,
		chatID, chatID, keep,
	).Error
}

func (s *Store) AddFavorite(ctx context.Context, fav domain.Favorite) error {
	row := favoriteRow{
		UserID:    fav.UserID,
		ModelID:   fav.ModelID,
		CreatedAt: fav.CreatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (s *Store) RemoveFavorite(ctx context.Context, userID int64, modelID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND model_id = ?", userID, modelID).
		Delete(&favoriteRow{}).Error
}

func (s *Store) ListFavorites(ctx context.Context, userID int64) ([]domain.Favorite, error) {
	var rows []favoriteRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, model_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	favs := make([]domain.Favorite, 0, len(rows))
	for _, r := range rows {
		favs = append(favs, domain.Favorite{UserID: r.UserID, ModelID: r.ModelID, CreatedAt: r.CreatedAt})
	}
	return favs, nil
}
