package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/models"
	"multiai-telebot/backend/conversation/repository"
	"multiai-telebot/backend/pkg/config"
	"multiai-telebot/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newSweeperFixture(t *testing.T) (*Sweeper, repository.ConversationRepository, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Conversation{}, &models.Message{}))

	repo := repository.NewGormConversationRepository(db)
	settings := config.NewRuntime(testConfig(false))
	log := logger.New(logger.Config{Level: "error"})

	return NewSweeper(repo, settings, time.Hour, log), repo, db
}

func TestPurgeNowUsesConfiguredHorizon(t *testing.T) {
	sweeper, repo, db := newSweeperFixture(t)
	ctx := context.Background()

	_, err := repo.AppendMessage(ctx, repository.AppendParams{
		ConversationID: 1,
		MessageID:      1,
		Role:           ai.RoleUser,
		Content:        ai.TextContent("old"),
	}, 0)
	require.NoError(t, err)
	_, err = repo.AppendMessage(ctx, repository.AppendParams{
		ConversationID: 2,
		MessageID:      1,
		Role:           ai.RoleUser,
		Content:        ai.TextContent("recent"),
	}, 0)
	require.NoError(t, err)

	// PurgeDays is 30 in the fixture; one conversation sits past the
	// horizon, the other just inside it.
	stale := time.Now().UTC().Add(-31 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.Conversation{}).Where("id = ?", 1).Update("last_message_at", stale).Error)

	purged, err := sweeper.PurgeNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	gone, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := repo.Find(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestPurgeNowEmptyStoreSucceeds(t *testing.T) {
	sweeper, _, _ := newSweeperFixture(t)

	purged, err := sweeper.PurgeNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
}
