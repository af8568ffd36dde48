package service

import (
	"context"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/models"
	"multiai-telebot/backend/conversation/repository"
	"multiai-telebot/backend/pkg/config"
	"multiai-telebot/backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// emptyTextPlaceholder stands in for an empty completion; the
// messaging platform rejects messages without text.
const emptyTextPlaceholder = "[EMPTY]"

// ReplySender delivers the assistant reply to the originating thread
// and returns the platform-assigned id of the sent message. For
// streamed replies the first fragment is sent and every later fragment
// arrives as an edit carrying the accumulated text so far.
type ReplySender interface {
	SendReply(ctx context.Context, conversationID int64, text string) (int64, error)
	UpdateReply(ctx context.Context, conversationID, messageID int64, text string) error
}

// ExchangeInput is one inbound user prompt, already translated to a
// content payload by the messaging layer.
type ExchangeInput struct {
	ConversationID int64
	MessageID      int64
	AuthorName     string
	Content        ai.MessageContent
}

// ChatService runs the prompt/reply exchange against the retention
// engine: append the user's message, build the capped context, obtain
// the completion, relay it, and record the reply. Both sides of the
// exchange are committed together or not at all.
type ChatService struct {
	repo     repository.ConversationRepository
	llm      ai.Client
	settings *config.Runtime
	log      *logger.Logger
	botName  string

	exchanges metric.Int64Counter
	failures  metric.Int64Counter
}

func NewChatService(repo repository.ConversationRepository, llm ai.Client, settings *config.Runtime, log *logger.Logger, botName string) *ChatService {
	meter := otel.Meter("multiai-telebot/conversation")
	exchanges, _ := meter.Int64Counter("chat_exchanges_total",
		metric.WithDescription("Completed prompt/reply exchanges"))
	failures, _ := meter.Int64Counter("chat_exchange_failures_total",
		metric.WithDescription("Exchanges rolled back before commit"))

	return &ChatService{
		repo:      repo,
		llm:       llm,
		settings:  settings,
		log:       log,
		botName:   botName,
		exchanges: exchanges,
		failures:  failures,
	}
}

// HandleExchange performs the full user-prompt/assistant-reply turn.
// The LLM call happens between recording the prompt and recording the
// reply, inside the same store transaction, so a failed call leaves no
// orphaned user-only turn behind.
func (s *ChatService) HandleExchange(ctx context.Context, in ExchangeInput, sender ReplySender) (*models.Message, error) {
	prompt := repository.AppendParams{
		ConversationID:   in.ConversationID,
		MessageID:        in.MessageID,
		Role:             ai.RoleUser,
		Content:          in.Content,
		DefaultDirective: s.settings.DefaultDirective(),
	}
	if in.AuthorName != "" {
		name := in.AuthorName
		prompt.AuthorName = &name
	}

	reply, err := s.repo.AppendExchange(ctx, prompt, s.settings.MaxMessages(),
		func(ctx context.Context, conv *models.Conversation, history []models.Message) (*repository.AppendParams, error) {
			entries := BuildFromMessages(conv.Directive, history, s.settings.MaxContextItems())

			modelSettings, err := ai.SelectModelSettings(entries,
				s.settings.VisionModelSettings(), s.settings.ChatModelSettings())
			if err != nil {
				return nil, err
			}

			var text string
			var sentID int64
			if s.settings.Stream() && canStream(sender) {
				text, sentID, err = s.streamReply(ctx, in.ConversationID, entries, modelSettings, sender)
			} else {
				text, err = s.llm.Chat(ctx, entries, modelSettings)
				if err == nil {
					text = orPlaceholder(text)
					sentID, err = sender.SendReply(ctx, in.ConversationID, text)
				}
			}
			if err != nil {
				return nil, err
			}

			botName := s.botName
			return &repository.AppendParams{
				MessageID:        sentID,
				AuthorName:       &botName,
				Role:             ai.RoleAssistant,
				Content:          ai.TextContent(text),
				DefaultDirective: s.settings.DefaultDirective(),
			}, nil
		})
	if err != nil {
		s.failures.Add(ctx, 1)
		return nil, err
	}

	s.exchanges.Add(ctx, 1)
	return reply, nil
}

// streamReply relays the completion incrementally: the first fragment
// creates the reply message, every later fragment edits it with the
// accumulated text. Returns the full text and the sent message id.
func (s *ChatService) streamReply(ctx context.Context, conversationID int64, entries []ai.ChatEntry, settings ai.ModelSettings, sender ReplySender) (string, int64, error) {
	var sentID int64
	var accumulated string

	full, err := s.llm.ChatStream(ctx, entries, settings, func(delta string) error {
		accumulated += delta
		if sentID == 0 {
			id, sendErr := sender.SendReply(ctx, conversationID, accumulated)
			if sendErr != nil {
				return sendErr
			}
			sentID = id
			return nil
		}
		return sender.UpdateReply(ctx, conversationID, sentID, accumulated)
	})
	if err != nil {
		return "", 0, err
	}

	// A stream with no fragments still has to produce a reply message.
	if sentID == 0 {
		full = orPlaceholder(full)
		id, sendErr := sender.SendReply(ctx, conversationID, full)
		if sendErr != nil {
			return "", 0, sendErr
		}
		sentID = id
	}
	return full, sentID, nil
}

// Forget erases the conversation's messages while keeping its shell.
func (s *ChatService) Forget(ctx context.Context, conversationID int64) error {
	return s.repo.Erase(ctx, conversationID)
}

// DeleteConversation removes the conversation and all of its messages,
// used when the bot is removed from a chat.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID int64) error {
	return s.repo.Delete(ctx, conversationID)
}

// OldestMessage returns the oldest retained message, or nil.
func (s *ChatService) OldestMessage(ctx context.Context, conversationID int64) (*models.Message, error) {
	return s.repo.OldestMessage(ctx, conversationID)
}

// HasVisionContent reports whether the stored history would route the
// next completion to the vision model.
func (s *ChatService) HasVisionContent(ctx context.Context, conversationID int64) (bool, error) {
	msgs, err := s.repo.Messages(ctx, conversationID)
	if err != nil {
		return false, err
	}
	entries := make([]ai.ChatEntry, 0, len(msgs))
	for i := range msgs {
		entries = append(entries, msgs[i].ContextEntry())
	}
	return ai.RequiresVisionModel(entries), nil
}

// Directive returns the conversation's directive.
func (s *ChatService) Directive(ctx context.Context, conversationID int64) (*string, error) {
	return s.repo.GetDirective(ctx, conversationID)
}

// SetDirective stores a new directive, creating the conversation shell
// when needed.
func (s *ChatService) SetDirective(ctx context.Context, conversationID int64, directive string) error {
	return s.repo.SetDirective(ctx, conversationID, directive)
}

// ResetDirective restores the configured default directive.
func (s *ChatService) ResetDirective(ctx context.Context, conversationID int64) error {
	return s.repo.ResetDirective(ctx, conversationID, s.settings.DefaultDirective())
}

// canStream asks the sender whether it can render partial replies.
// Senders that deliver the reply as a single rendered artifact (voice,
// say) opt out by implementing CanStream.
func canStream(sender ReplySender) bool {
	if s, ok := sender.(interface{ CanStream() bool }); ok {
		return s.CanStream()
	}
	return true
}

func orPlaceholder(text string) string {
	if text == "" {
		return emptyTextPlaceholder
	}
	return text
}
