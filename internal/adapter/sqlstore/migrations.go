package sqlstore

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func migrator(db *gorm.DB) *gormigrate.Gormigrate {
	return gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0001_chats_messages",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&chatRow{}, &messageRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("messages", "chats")
			},
		},
		{
			ID: "0002_favorites",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&favoriteRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("favorites")
			},
		},
		{
			ID: "0003_messages_chat_order_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_messages_chat_order ON messages (chat_id, id)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_messages_chat_order").Error
			},
		},
	})
}
