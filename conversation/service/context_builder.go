package service

import (
	"context"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/models"
	"multiai-telebot/backend/conversation/repository"
)

// BuildEntries turns a newest-first message slice into the ordered
// context for the LLM: messages flipped to ascending id order, with a
// synthetic system entry ahead of them when a directive is set. The
// directive entry is not persisted and does not count against any cap.
func BuildEntries(directive *string, newestFirst []models.Message) []ai.ChatEntry {
	entries := make([]ai.ChatEntry, 0, len(newestFirst)+1)

	if directive != nil && *directive != "" {
		entries = append(entries, ai.ChatEntry{
			Role:    ai.RoleSystem,
			Content: ai.TextContent(*directive),
		})
	}

	for i := len(newestFirst) - 1; i >= 0; i-- {
		entries = append(entries, newestFirst[i].ContextEntry())
	}
	return entries
}

// BuildFromMessages builds the context from an ascending message slice,
// keeping only the most recent maxItems messages when a positive limit
// is given.
func BuildFromMessages(directive *string, asc []models.Message, maxItems int) []ai.ChatEntry {
	if maxItems > 0 && len(asc) > maxItems {
		asc = asc[len(asc)-maxItems:]
	}

	entries := make([]ai.ChatEntry, 0, len(asc)+1)
	if directive != nil && *directive != "" {
		entries = append(entries, ai.ChatEntry{
			Role:    ai.RoleSystem,
			Content: ai.TextContent(*directive),
		})
	}
	for i := range asc {
		entries = append(entries, asc[i].ContextEntry())
	}
	return entries
}

// ContextBuilder derives the prompt context from stored state. It is a
// pure projection; nothing is written.
type ContextBuilder struct {
	repo repository.ConversationRepository
}

func NewContextBuilder(repo repository.ConversationRepository) *ContextBuilder {
	return &ContextBuilder{repo: repo}
}

// Build reads up to maxItems of the newest messages (zero means
// unbounded) and returns the presentation-ordered context. A missing
// conversation, like an empty one without a directive, yields an empty
// sequence.
func (b *ContextBuilder) Build(ctx context.Context, conversationID int64, maxItems int) ([]ai.ChatEntry, error) {
	conv, err := b.repo.Find(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return []ai.ChatEntry{}, nil
	}

	msgs, err := b.repo.RecentMessages(ctx, conversationID, maxItems)
	if err != nil {
		return nil, err
	}
	return BuildEntries(conv.Directive, msgs), nil
}
