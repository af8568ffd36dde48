package bot

import (
	"context"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/internal/telegram"
)

// textReplySender delivers the assistant reply as a text message,
// editing it in place as streamed fragments accumulate.
type textReplySender struct {
	tg      *telegram.Client
	replyTo int64
}

func (s *textReplySender) SendReply(ctx context.Context, conversationID int64, text string) (int64, error) {
	return s.tg.SendMessage(ctx, conversationID, text, s.replyTo)
}

func (s *textReplySender) UpdateReply(ctx context.Context, conversationID, messageID int64, text string) error {
	return s.tg.EditMessageText(ctx, conversationID, messageID, text)
}

// voiceReplySender renders the reply to speech and sends it as a voice
// message. Voice cannot grow incrementally, so it opts out of
// streaming.
type voiceReplySender struct {
	tg      *telegram.Client
	llm     ai.Client
	replyTo int64
}

func (s *voiceReplySender) CanStream() bool { return false }

func (s *voiceReplySender) SendReply(ctx context.Context, conversationID int64, text string) (int64, error) {
	speech, err := s.llm.Speak(ctx, text)
	if err != nil {
		return 0, err
	}
	return s.tg.SendVoice(ctx, conversationID, speech, s.replyTo)
}

func (s *voiceReplySender) UpdateReply(ctx context.Context, conversationID, messageID int64, text string) error {
	return nil
}
