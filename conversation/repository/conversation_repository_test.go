package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/models"
	apperrors "multiai-telebot/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) (*GormConversationRepository, *gorm.DB) {
	t.Helper()

	// A named shared-cache database keeps every pooled connection on
	// the same in-memory store.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Conversation{}, &models.Message{}))

	return NewGormConversationRepository(db), db
}

func appendText(t *testing.T, repo *GormConversationRepository, convID, msgID int64, text string, max int) *models.Message {
	t.Helper()
	msg, err := repo.AppendMessage(context.Background(), AppendParams{
		ConversationID: convID,
		MessageID:      msgID,
		Role:           ai.RoleUser,
		Content:        ai.TextContent(text),
	}, max)
	require.NoError(t, err)
	return msg
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	directive := "be brief"
	first, err := repo.FindOrCreate(ctx, 100, &directive)
	require.NoError(t, err)
	require.NotNil(t, first.Directive)
	assert.Equal(t, "be brief", *first.Directive)
	assert.Nil(t, first.LastMessageAt)

	// A second call must return the existing row, not overwrite the
	// directive with the new default.
	other := "be verbose"
	second, err := repo.FindOrCreate(ctx, 100, &other)
	require.NoError(t, err)
	require.NotNil(t, second.Directive)
	assert.Equal(t, "be brief", *second.Directive)
}

func TestFindReturnsNilForUnknownConversation(t *testing.T) {
	repo, _ := newTestRepo(t)

	conv, err := repo.Find(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestAppendKeepsNewestAtCapacity(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		appendText(t, repo, 1, i, fmt.Sprintf("msg %d", i), 3)
	}

	msgs, err := repo.Messages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(3), msgs[0].ID)
	assert.Equal(t, int64(4), msgs[1].ID)
	assert.Equal(t, int64(5), msgs[2].ID)
}

func TestAppendBelowCapacityEvictsNothing(t *testing.T) {
	repo, _ := newTestRepo(t)

	appendText(t, repo, 1, 1, "a", 10)
	appendText(t, repo, 1, 2, "b", 10)

	count, err := repo.CountMessages(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestAppendTouchesLastActivity(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	appendText(t, repo, 1, 1, "hello", 10)

	conv, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, conv.LastMessageAt)
	assert.True(t, conv.LastMessageAt.After(before))
}

func TestDeleteCascadesToMessages(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	appendText(t, repo, 1, 1, "a", 10)
	appendText(t, repo, 1, 2, "b", 10)
	appendText(t, repo, 2, 1, "other chat", 10)

	require.NoError(t, repo.Delete(ctx, 1))

	conv, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, conv)

	// No orphaned rows may survive the cascade.
	var orphans int64
	require.NoError(t, db.Model(&models.Message{}).Where("conversation_id = ?", 1).Count(&orphans).Error)
	assert.Zero(t, orphans)

	// The other conversation is untouched.
	count, err := repo.CountMessages(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEraseKeepsShell(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	directive := "speak like a pirate"
	_, err := repo.FindOrCreate(ctx, 1, &directive)
	require.NoError(t, err)
	appendText(t, repo, 1, 1, "a", 10)
	appendText(t, repo, 1, 2, "b", 10)

	require.NoError(t, repo.Erase(ctx, 1))

	count, err := repo.CountMessages(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	conv, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.NotNil(t, conv.Directive)
	assert.Equal(t, "speak like a pirate", *conv.Directive)
	assert.NotNil(t, conv.LastMessageAt)
}

func TestEraseUnknownConversationIsNoOp(t *testing.T) {
	repo, _ := newTestRepo(t)
	assert.NoError(t, repo.Erase(context.Background(), 12345))
}

func TestDirectiveOperations(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	// Reading a directive for an unknown conversation is an error the
	// caller can tell apart from an unset directive.
	_, err := repo.GetDirective(ctx, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	// Setting a directive creates the conversation shell.
	require.NoError(t, repo.SetDirective(ctx, 1, "custom"))
	d, err := repo.GetDirective(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "custom", *d)

	// Reset restores the default.
	def := "default directive"
	require.NoError(t, repo.ResetDirective(ctx, 1, &def))
	d, err = repo.GetDirective(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "default directive", *d)

	// Resetting an unknown conversation must not create one.
	require.NoError(t, repo.ResetDirective(ctx, 2, &def))
	conv, err := repo.Find(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestPurgeStaleRemovesOnlyOldConversations(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	appendText(t, repo, 1, 1, "stale", 10)
	appendText(t, repo, 2, 1, "fresh", 10)
	_, err := repo.FindOrCreate(ctx, 3, nil)
	require.NoError(t, err)

	stale := time.Now().UTC().Add(-31 * 24 * time.Hour)
	fresh := time.Now().UTC().Add(-29 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.Conversation{}).Where("id = ?", 1).Update("last_message_at", stale).Error)
	require.NoError(t, db.Model(&models.Conversation{}).Where("id = ?", 2).Update("last_message_at", fresh).Error)

	purged, err := repo.PurgeStale(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	gone, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := repo.Find(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	// Conversations with no recorded activity are never purge
	// candidates.
	never, err := repo.Find(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, never)

	// The stale conversation's messages went with it.
	var orphans int64
	require.NoError(t, db.Model(&models.Message{}).Where("conversation_id = ?", 1).Count(&orphans).Error)
	assert.Zero(t, orphans)
}

func TestPurgeStaleWithNoMatchesSucceeds(t *testing.T) {
	repo, _ := newTestRepo(t)

	purged, err := repo.PurgeStale(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestAppendExchangeCommitsBothSides(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	botName := "assistant"
	reply, err := repo.AppendExchange(ctx, AppendParams{
		ConversationID: 1,
		MessageID:      10,
		Role:           ai.RoleUser,
		Content:        ai.TextContent("hello"),
	}, 50, func(ctx context.Context, conv *models.Conversation, history []models.Message) (*AppendParams, error) {
		// The prompt must already be visible to the reply producer.
		require.Len(t, history, 1)
		assert.Equal(t, "hello", history[0].Content.Text)

		return &AppendParams{
			MessageID:  11,
			AuthorName: &botName,
			Role:       ai.RoleAssistant,
			Content:    ai.TextContent("hi there"),
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), reply.ID)
	assert.Equal(t, ai.RoleAssistant, reply.Role)

	msgs, err := repo.Messages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, ai.RoleUser, msgs[0].Role)
	assert.Equal(t, ai.RoleAssistant, msgs[1].Role)
}

func TestAppendExchangeRollsBackPromptOnFailure(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AppendExchange(ctx, AppendParams{
		ConversationID: 1,
		MessageID:      10,
		Role:           ai.RoleUser,
		Content:        ai.TextContent("doomed"),
	}, 50, func(ctx context.Context, conv *models.Conversation, history []models.Message) (*AppendParams, error) {
		return nil, fmt.Errorf("model unavailable")
	})
	require.Error(t, err)

	// Neither the prompt nor the conversation shell survives.
	count, err := repo.CountMessages(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	conv, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestAppendExchangePreservesExistingConversationOnFailure(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	appendText(t, repo, 1, 1, "earlier", 50)

	_, err := repo.AppendExchange(ctx, AppendParams{
		ConversationID: 1,
		MessageID:      2,
		Role:           ai.RoleUser,
		Content:        ai.TextContent("doomed"),
	}, 50, func(ctx context.Context, conv *models.Conversation, history []models.Message) (*AppendParams, error) {
		return nil, fmt.Errorf("model unavailable")
	})
	require.Error(t, err)

	msgs, err := repo.Messages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].ID)
}

func TestRecentMessagesOrderAndLimit(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		appendText(t, repo, 1, i, fmt.Sprintf("msg %d", i), 0)
	}

	recent, err := repo.RecentMessages(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(5), recent[0].ID)
	assert.Equal(t, int64(4), recent[1].ID)
	assert.Equal(t, int64(3), recent[2].ID)

	all, err := repo.RecentMessages(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestOldestMessage(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	none, err := repo.OldestMessage(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, none)

	appendText(t, repo, 1, 7, "first", 0)
	appendText(t, repo, 1, 9, "second", 0)

	oldest, err := repo.OldestMessage(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.Equal(t, int64(7), oldest.ID)
}

func TestStructuredContentRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	content := ai.BuildContent([]string{"look at [image 1]"}, []string{"https://example.com/cat.png"}, "low")
	_, err := repo.AppendMessage(ctx, AppendParams{
		ConversationID: 1,
		MessageID:      1,
		Role:           ai.RoleUser,
		Content:        content,
	}, 0)
	require.NoError(t, err)

	msgs, err := repo.Messages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].Content.IsStructured())
	assert.True(t, msgs[0].Content.HasImage())
	assert.Equal(t, "look at [image 1]", msgs[0].Content.PlainText())
}
