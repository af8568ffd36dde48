package models

import (
	"time"

	"multiai-telebot/backend/ai"
)

// Message is one turn in a conversation. The messaging platform assigns
// message ids that increase monotonically within a chat, so the id
// doubles as the ordering key and no timestamp column is needed. Ids
// are only unique per chat, hence the composite primary key.
type Message struct {
	ConversationID int64 `json:"conversation_id" gorm:"primaryKey;autoIncrement:false"`
	ID             int64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	// AuthorName is empty for system-originated entries.
	AuthorName *string           `json:"author_name"`
	Role       ai.Role           `json:"role" gorm:"type:varchar(16);not null"`
	Content    ai.MessageContent `json:"content" gorm:"type:json"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ContextEntry projects the message into the shape submitted to the
// LLM backend.
func (m *Message) ContextEntry() ai.ChatEntry {
	entry := ai.ChatEntry{
		Role:    m.Role,
		Content: m.Content,
	}
	if m.AuthorName != nil && *m.AuthorName != "" {
		entry.Name = "@" + *m.AuthorName
	}
	return entry
}
