package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/service"
	"multiai-telebot/backend/internal/telegram"
	"multiai-telebot/backend/pkg/config"
)

func (b *Bot) dispatchCommand(ctx context.Context, m *telegram.Message, text string) {
	cmd, args := splitCommand(text)

	switch cmd {
	case "start", "help":
		b.cmdHelp(ctx, m)
	case "status":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdStatus(ctx, m) })
	case "chatinfo":
		b.runAdmin(ctx, m, func(ctx context.Context) { b.cmdChatInfo(ctx, m) })
	case "config", "conf":
		b.runAdmin(ctx, m, func(ctx context.Context) { b.cmdConfig(ctx, m, args) })
	case "wlist":
		b.runAdmin(ctx, m, func(ctx context.Context) { b.cmdWhitelist(ctx, m, args) })
	case "purgechats":
		b.runAdmin(ctx, m, func(ctx context.Context) { b.cmdPurgeChats(ctx, m) })
	case "sysmsg":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdSysMsg(ctx, m, args) })
	case "forget":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdForget(ctx, m) })
	case "cansee":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdCanSee(ctx, m) })
	case "oldmsg":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdOldestMessage(ctx, m) })
	case "chat", "llm", "gpt":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdChat(ctx, m, args, false) })
	case "achat", "allm", "agpt":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdChat(ctx, m, args, true) })
	case "translate", "to":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdTranslate(ctx, m, args) })
	case "stt":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdTranscribe(ctx, m) })
	case "tts":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdSpeak(ctx, m) })
	case "image", "img", "picture", "pic":
		b.runGated(ctx, m, func(ctx context.Context) { b.cmdImage(ctx, m, args) })
	}
}

func (b *Bot) cmdHelp(ctx context.Context, m *telegram.Message) {
	help := shortDescription + "\n\n" +
		"User commands:\n\n" +
		"/sysmsg - Change the system message for this chat\n" +
		"/forget - Make the bot forget all the messages from this chat\n" +
		"/chat - Chat with the AI\n" +
		"/achat - Chat with the AI and receive a voice message\n" +
		"/oldmsg - Show the oldest message the bot remembers\n" +
		"/to - Translate a message\n" +
		"/stt - Transcribe a message\n" +
		"/tts - Make a voice message out of a textual one\n" +
		"/img - Generate an image\n\n" +
		"You don't need to use /chat or /achat, simply reply with text or voice instead."
	if _, err := b.tg.SendMessage(ctx, m.Chat.ID, help, 0); err != nil {
		b.log.LogError(err, "failed to send help", "chat_id", m.Chat.ID)
	}
}

func (b *Bot) cmdStatus(ctx context.Context, m *telegram.Message) {
	if _, err := b.tg.SendMessage(ctx, m.Chat.ID, "ONLINE", 0); err != nil {
		b.log.LogError(err, "failed to send status", "chat_id", m.Chat.ID)
	}
}

func (b *Bot) cmdChatInfo(ctx context.Context, m *telegram.Message) {
	b.replyInfo(ctx, m, fmt.Sprintf("Chat ID: %d", m.Chat.ID))
}

// cmdConfig handles the settings surface.
// Format: /config <get|set|reset|show> [path [value]]
func (b *Bot) cmdConfig(ctx context.Context, m *telegram.Message, args string) {
	op, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)

	if op == "show" {
		var sb strings.Builder
		for _, path := range config.Paths() {
			value, err := b.settings.Get(path)
			if err != nil {
				continue
			}
			fmt.Fprintf(&sb, "%s = %s\n", path, value)
		}
		b.replyInfo(ctx, m, sb.String())
		return
	}

	path, value, _ := strings.Cut(rest, " ")
	if path == "" {
		b.replyError(ctx, m, "You need to specify a key path.")
		return
	}

	switch op {
	case "get":
		v, err := b.settings.Get(path)
		if err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		b.replyInfo(ctx, m, fmt.Sprintf("The value at %q is set to: %s", path, v))
	case "set":
		if value == "" {
			b.replyError(ctx, m, "You need to specify a value.")
			return
		}
		if err := b.settings.Set(path, value); err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		b.replyInfo(ctx, m, fmt.Sprintf("%q was set to: %s", path, value))
	case "reset":
		if err := b.settings.Reset(path); err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		v, _ := b.settings.Get(path)
		b.replyInfo(ctx, m, fmt.Sprintf("%q was reset to its default value (%s).", path, v))
	default:
		b.replyError(ctx, m, "Usage: /config <get|set|reset|show> [path [value]]")
	}
}

// cmdWhitelist handles the whitelist.
// Format: /wlist <has|add|remove|show> [id]
func (b *Bot) cmdWhitelist(ctx context.Context, m *telegram.Message, args string) {
	op, rest, _ := strings.Cut(args, " ")

	if op == "show" {
		ids, err := b.wlist.List(ctx)
		if err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		lines := make([]string, 0, len(ids))
		for _, id := range ids {
			lines = append(lines, strconv.FormatInt(id, 10))
		}
		b.replyInfo(ctx, m, strings.Join(lines, "\n"))
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil {
		b.replyError(ctx, m, "You need to specify a numeric id.")
		return
	}

	switch op {
	case "has":
		present, err := b.wlist.Has(ctx, id)
		if err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		if present {
			b.replyInfo(ctx, m, fmt.Sprintf("%d is present in the whitelist.", id))
		} else {
			b.replyInfo(ctx, m, fmt.Sprintf("%d is not present in the whitelist.", id))
		}
	case "add":
		if err := b.wlist.Add(ctx, id); err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		b.replyInfo(ctx, m, fmt.Sprintf("%d was added to the whitelist.", id))
	case "remove":
		if err := b.wlist.Remove(ctx, id); err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		b.replyInfo(ctx, m, fmt.Sprintf("%d was removed from the whitelist.", id))
	default:
		b.replyError(ctx, m, "Usage: /wlist <has|add|remove|show> [id]")
	}
}

func (b *Bot) cmdPurgeChats(ctx context.Context, m *telegram.Message) {
	purged, err := b.sweeper.PurgeNow(ctx)
	if err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}
	b.replyInfo(ctx, m, fmt.Sprintf("Old chats were purged (%d removed).", purged))
}

// cmdSysMsg handles the chat's system message.
// Format: /sysmsg <set|reset|show> [message]
func (b *Bot) cmdSysMsg(ctx context.Context, m *telegram.Message, args string) {
	op, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)

	switch op {
	case "show":
		directive, err := b.chat.Directive(ctx, m.Chat.ID)
		if err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		if directive == nil {
			b.replyInfo(ctx, m, "No system message is set for this chat.")
			return
		}
		b.replyInfo(ctx, m, "Current system message: "+*directive)
	case "set":
		if rest == "" {
			b.replyError(ctx, m, "You need to specify a message.")
			return
		}
		if err := b.chat.SetDirective(ctx, m.Chat.ID, rest); err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		b.replyInfo(ctx, m, "The system message was set to: "+rest)
	case "reset":
		if err := b.chat.ResetDirective(ctx, m.Chat.ID); err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		b.replyInfo(ctx, m, "The system message was reset to its default.")
	default:
		b.replyError(ctx, m, "Usage: /sysmsg <set|reset|show> [message]")
	}
}

func (b *Bot) cmdForget(ctx context.Context, m *telegram.Message) {
	if err := b.chat.Forget(ctx, m.Chat.ID); err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}
	b.replyInfo(ctx, m, "Past messages from this chat were erased from the bot's memory.")
}

// cmdCanSee tells whether images appear in the retained history, which
// means the vision model may serve the next reply.
func (b *Bot) cmdCanSee(ctx context.Context, m *telegram.Message) {
	hasImages, err := b.chat.HasVisionContent(ctx, m.Chat.ID)
	if err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}
	if hasImages {
		b.replyInfo(ctx, m, "Images were referenced in the conversation.")
	} else {
		b.replyInfo(ctx, m, "No images were referenced in the conversation.")
	}
}

func (b *Bot) cmdOldestMessage(ctx context.Context, m *telegram.Message) {
	oldest, err := b.chat.OldestMessage(ctx, m.Chat.ID)
	if err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}
	if oldest == nil {
		b.replyInfo(ctx, m, "Could not find any message on this chat.")
		return
	}
	// Quote the oldest retained message so the sender sees where the
	// bot's memory starts.
	if _, err := b.tg.SendMessage(ctx, m.Chat.ID,
		"This is the oldest message the bot has access to.", oldest.ID); err != nil {
		b.log.LogError(err, "failed to quote oldest message", "chat_id", m.Chat.ID)
	}
}

// cmdChat runs one prompt/reply exchange. The prompt comes from the
// argument tail, a voice note's transcription, or a photo caption;
// voice selects a spoken reply.
func (b *Bot) cmdChat(ctx context.Context, m *telegram.Message, args string, voice bool) {
	prompt := args
	if prompt == "" {
		text, err := b.textPrompt(ctx, m)
		if err != nil {
			b.replyError(ctx, m, err.Error())
			return
		}
		prompt = text
	}
	if prompt == "" && len(m.Photo) == 0 && (m.ReplyToMessage == nil || len(m.ReplyToMessage.Photo) == 0) {
		return
	}

	// A photo attached to the prompt itself reads like a quoted photo.
	if len(m.Photo) > 0 && m.ReplyToMessage == nil {
		m.ReplyToMessage = m
	}

	text, imgURLs, err := b.extractImages(ctx, m, prompt)
	if err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}

	var content ai.MessageContent
	if len(imgURLs) > 0 {
		content = ai.BuildContent([]string{text}, imgURLs, b.settings.VisionDetail())
	} else {
		content = ai.TextContent(text)
	}

	in := service.ExchangeInput{
		ConversationID: m.Chat.ID,
		MessageID:      m.ID,
		AuthorName:     m.From.Username,
		Content:        content,
	}

	var sender service.ReplySender
	if voice {
		sender = &voiceReplySender{tg: b.tg, llm: b.llm, replyTo: m.ID}
	} else {
		sender = &textReplySender{tg: b.tg, replyTo: m.ID}
	}

	if _, err := b.chat.HandleExchange(ctx, in, sender); err != nil {
		b.log.LogError(err, "exchange failed", "chat_id", m.Chat.ID)
		b.replyError(ctx, m, err.Error())
	}
}

// cmdTranslate translates the quoted message's text.
// Format: /to <language>  (as a reply)
func (b *Bot) cmdTranslate(ctx context.Context, m *telegram.Message, lang string) {
	if lang == "" {
		b.replyError(ctx, m, "You need to specify a language.")
		return
	}
	if m.ReplyToMessage == nil {
		b.replyError(ctx, m, "Reply to the message you want translated.")
		return
	}
	text, err := b.textPrompt(ctx, m.ReplyToMessage)
	if err != nil || text == "" {
		b.replyError(ctx, m, "The quoted message has no text to translate.")
		return
	}

	trans, err := b.llm.Translate(ctx, text, lang)
	if err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}
	out := fmt.Sprintf("[%s->%s] %s", trans.SrcLang, trans.DstLang, trans.TranslatedText)
	if _, err := b.tg.SendMessage(ctx, m.Chat.ID, out, m.ReplyToMessage.ID); err != nil {
		b.log.LogError(err, "failed to send translation", "chat_id", m.Chat.ID)
	}
}

// cmdTranscribe transcribes the quoted voice or audio message.
func (b *Bot) cmdTranscribe(ctx context.Context, m *telegram.Message) {
	if m.ReplyToMessage == nil {
		b.replyError(ctx, m, "Reply to the voice message you want transcribed.")
		return
	}
	audio, err := b.audioPrompt(ctx, m.ReplyToMessage)
	if err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}
	if audio == nil {
		b.replyError(ctx, m, "The quoted message has no audio.")
		return
	}
	text, err := b.llm.Transcribe(ctx, *audio)
	if err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}
	if _, err := b.tg.SendMessage(ctx, m.Chat.ID, text, m.ID); err != nil {
		b.log.LogError(err, "failed to send transcription", "chat_id", m.Chat.ID)
	}
}

// cmdSpeak turns the quoted message's text into a voice message.
func (b *Bot) cmdSpeak(ctx context.Context, m *telegram.Message) {
	if m.ReplyToMessage == nil {
		b.replyError(ctx, m, "Reply to the message you want spoken.")
		return
	}
	text, err := b.textPrompt(ctx, m.ReplyToMessage)
	if err != nil || text == "" {
		b.replyError(ctx, m, "The quoted message has no text to speak.")
		return
	}
	speech, err := b.llm.Speak(ctx, text)
	if err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}
	if _, err := b.tg.SendVoice(ctx, m.Chat.ID, speech, m.ID); err != nil {
		b.log.LogError(err, "failed to send voice", "chat_id", m.Chat.ID)
	}
}

// cmdImage generates one image from the prompt and sends it back with
// the prompt as caption.
func (b *Bot) cmdImage(ctx context.Context, m *telegram.Message, prompt string) {
	if prompt == "" {
		b.replyError(ctx, m, "You need to specify a prompt.")
		return
	}
	images, err := b.llm.GenerateImages(ctx, prompt, 1)
	if err != nil {
		b.replyError(ctx, m, err.Error())
		return
	}
	if len(images) == 0 {
		b.replyError(ctx, m, "The server returned no image.")
		return
	}
	if _, err := b.tg.SendPhoto(ctx, m.Chat.ID, images[0], prompt, m.ID); err != nil {
		b.log.LogError(err, "failed to send image", "chat_id", m.Chat.ID)
	}
}
