package service

import (
	"testing"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func msg(id int64, role ai.Role, author, text string) models.Message {
	m := models.Message{
		ConversationID: 1,
		ID:             id,
		Role:           role,
		Content:        ai.TextContent(text),
	}
	if author != "" {
		m.AuthorName = &author
	}
	return m
}

func TestBuildEntriesReversesToAscendingOrder(t *testing.T) {
	newestFirst := []models.Message{
		msg(3, ai.RoleAssistant, "bot", "third"),
		msg(2, ai.RoleUser, "alice", "second"),
		msg(1, ai.RoleUser, "alice", "first"),
	}

	entries := BuildEntries(nil, newestFirst)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Content.Text)
	assert.Equal(t, "second", entries[1].Content.Text)
	assert.Equal(t, "third", entries[2].Content.Text)
}

func TestBuildEntriesPrependsDirective(t *testing.T) {
	newestFirst := []models.Message{msg(1, ai.RoleUser, "alice", "hi")}

	entries := BuildEntries(strptr("answer in rhyme"), newestFirst)
	require.Len(t, entries, 2)
	assert.Equal(t, ai.RoleSystem, entries[0].Role)
	assert.Equal(t, "answer in rhyme", entries[0].Content.Text)
	assert.Equal(t, "hi", entries[1].Content.Text)
}

func TestBuildEntriesEmptyDirectiveAddsNothing(t *testing.T) {
	entries := BuildEntries(strptr(""), nil)
	assert.Empty(t, entries)
}

func TestBuildEntriesPrefixesAuthorNames(t *testing.T) {
	entries := BuildEntries(nil, []models.Message{msg(1, ai.RoleUser, "alice", "hi")})
	require.Len(t, entries, 1)
	assert.Equal(t, "@alice", entries[0].Name)
}

func TestBuildFromMessagesKeepsNewestWithinLimit(t *testing.T) {
	asc := []models.Message{
		msg(1, ai.RoleUser, "a", "one"),
		msg(2, ai.RoleAssistant, "bot", "two"),
		msg(3, ai.RoleUser, "a", "three"),
		msg(4, ai.RoleAssistant, "bot", "four"),
	}

	entries := BuildFromMessages(strptr("sys"), asc, 2)
	require.Len(t, entries, 3)
	// The directive entry does not count against the item limit.
	assert.Equal(t, ai.RoleSystem, entries[0].Role)
	assert.Equal(t, "three", entries[1].Content.Text)
	assert.Equal(t, "four", entries[2].Content.Text)
}

func TestBuildFromMessagesZeroLimitIsUnbounded(t *testing.T) {
	asc := []models.Message{
		msg(1, ai.RoleUser, "a", "one"),
		msg(2, ai.RoleUser, "a", "two"),
	}
	entries := BuildFromMessages(nil, asc, 0)
	assert.Len(t, entries, 2)
}
