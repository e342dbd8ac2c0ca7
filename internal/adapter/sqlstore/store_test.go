package sqlstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Purpose-arch/tgbotaimult/internal/adapter/storetest"
	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", "file::memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		return openTestStore(t)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = NewFromDB(db)
	require.NoError(t, err)
	_, err = NewFromDB(db)
	require.NoError(t, err)

	for _, table := range []string{"chats", "messages", "favorites"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", nil)
	require.ErrorContains(t, err, "unsupported")
}

func TestUUIDRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.CreateChat(ctx, &domain.Chat{ID: id, UserID: 9, Model: "m", Title: "t", Active: true}))

	active, err := s.ActiveChat(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, id, active.ID)
}
