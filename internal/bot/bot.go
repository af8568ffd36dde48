package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/service"
	"multiai-telebot/backend/internal/access"
	"multiai-telebot/backend/internal/telegram"
	"multiai-telebot/backend/pkg/cache"
	"multiai-telebot/backend/pkg/config"
	"multiai-telebot/backend/pkg/logger"
	"multiai-telebot/backend/pkg/middleware"
)

const shortDescription = "I'm a bot that lets you use various AI models."

// Options wires the bot's collaborators.
type Options struct {
	Telegram    *telegram.Client
	Chat        *service.ChatService
	Sweeper     *service.Sweeper
	LLM         ai.Client
	Settings    *config.Runtime
	Whitelist   *access.Whitelist
	Limiter     *middleware.RateLimiter
	MediaCache  *cache.Cache
	Logger      *logger.Logger
	AdminID     int64
	PollTimeout int
}

// Bot receives platform updates over long polling, gates them through
// the whitelist and rate limiter, and dispatches commands to the
// conversation engine.
type Bot struct {
	tg          *telegram.Client
	chat        *service.ChatService
	sweeper     *service.Sweeper
	llm         ai.Client
	settings    *config.Runtime
	wlist       *access.Whitelist
	limiter     *middleware.RateLimiter
	media       *cache.Cache
	log         *logger.Logger
	adminID     int64
	pollTimeout int

	self *telegram.User
}

func New(opts Options) *Bot {
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Bot{
		tg:          opts.Telegram,
		chat:        opts.Chat,
		sweeper:     opts.Sweeper,
		llm:         opts.LLM,
		settings:    opts.Settings,
		wlist:       opts.Whitelist,
		limiter:     opts.Limiter,
		media:       opts.MediaCache,
		log:         opts.Logger,
		adminID:     opts.AdminID,
		pollTimeout: pollTimeout,
	}
}

// Run polls for updates until the context is cancelled. Updates within
// one poll batch are handled in order; per-conversation serialization
// happens in the store.
func (b *Bot) Run(ctx context.Context) error {
	self, err := b.tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to identify bot account: %w", err)
	}
	b.self = self
	b.log.Info("bot polling started", "username", self.Username)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.tg.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.LogError(err, "update poll failed")
			time.Sleep(3 * time.Second)
			continue
		}

		for i := range updates {
			u := &updates[i]
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u *telegram.Update) {
	switch {
	case u.MyChatMember != nil:
		b.handleMembership(ctx, u.MyChatMember)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

// handleMembership reacts to the bot's own membership changes: joining
// a group introduces the bot, leaving one drops the conversation and
// every message in it.
func (b *Bot) handleMembership(ctx context.Context, m *telegram.MemberUpdate) {
	switch m.NewChatMember.Status {
	case "member":
		if _, err := b.tg.SendMessage(ctx, m.Chat.ID, b.introText(), 0); err != nil {
			b.log.LogError(err, "failed to introduce bot", "chat_id", m.Chat.ID)
		}
	case "left", "kicked":
		if err := b.chat.DeleteConversation(ctx, m.Chat.ID); err != nil {
			b.log.LogError(err, "failed to delete conversation after leaving", "chat_id", m.Chat.ID)
		} else {
			b.log.Info("conversation deleted after leaving chat", "chat_id", m.Chat.ID)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	if m.From == nil || m.From.IsBot {
		return
	}
	if !b.limiter.AllowChat(m.Chat.ID) {
		b.log.Warn("chat rate limited", "chat_id", m.Chat.ID)
		return
	}

	text := messageText(m)
	if strings.HasPrefix(text, "/") {
		b.dispatchCommand(ctx, m, text)
		return
	}

	// Plain messages count as prompts in private chats and when they
	// quote one of the bot's own messages.
	if !b.addressesBot(m) {
		return
	}
	switch {
	case m.Voice != nil || m.Audio != nil:
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdChat(ctx, m, "", true) })
	default:
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdChat(ctx, m, text, false) })
	}
}

// addressesBot reports whether a non-command message is meant for the
// bot: any private message, or a group reply to the bot's message.
func (b *Bot) addressesBot(m *telegram.Message) bool {
	if m.Chat.Type == "private" {
		return true
	}
	reply := m.ReplyToMessage
	return reply != nil && reply.From != nil && b.self != nil && reply.From.ID == b.self.ID
}

// runGated runs fn only for whitelisted senders; either the chat or
// the sender being listed grants access.
func (b *Bot) runGated(ctx context.Context, m *telegram.Message, fn func(context.Context)) {
	chatListed, err := b.wlist.Has(ctx, m.Chat.ID)
	if err != nil {
		b.log.LogError(err, "whitelist lookup failed", "chat_id", m.Chat.ID)
		return
	}
	userListed := false
	if !chatListed {
		userListed, err = b.wlist.Has(ctx, m.From.ID)
		if err != nil {
			b.log.LogError(err, "whitelist lookup failed", "user_id", m.From.ID)
			return
		}
	}
	if !chatListed && !userListed {
		b.log.Warn("sender not whitelisted", "chat_id", m.Chat.ID, "user_id", m.From.ID)
		return
	}
	fn(ctx)
}

// runAdmin runs fn only for the configured administrator.
func (b *Bot) runAdmin(ctx context.Context, m *telegram.Message, fn func(context.Context)) {
	if b.adminID == 0 || m.From.ID != b.adminID {
		b.log.Warn("admin command refused", "user_id", m.From.ID, "chat_id", m.Chat.ID)
		return
	}
	fn(ctx)
}

func (b *Bot) introText() string {
	username := ""
	if b.self != nil {
		username = b.self.Username
	}
	return shortDescription + "\n" +
		"Message @" + username + " or use /help for the list of commands."
}

// replyInfo and replyError mirror the bot's two reply registers; both
// quote the triggering message.
func (b *Bot) replyInfo(ctx context.Context, m *telegram.Message, text string) {
	if _, err := b.tg.SendMessage(ctx, m.Chat.ID, "[INFO]\n"+text, m.ID); err != nil {
		b.log.LogError(err, "failed to send info reply", "chat_id", m.Chat.ID)
	}
}

func (b *Bot) replyError(ctx context.Context, m *telegram.Message, text string) {
	if _, err := b.tg.SendMessage(ctx, m.Chat.ID, "[ERROR]\n"+text, m.ID); err != nil {
		b.log.LogError(err, "failed to send error reply", "chat_id", m.Chat.ID)
	}
}
