package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/internal/telegram"
)

var imageURLPattern = regexp.MustCompile(`https?://\S+`)

// splitCommand separates "/cmd@botname args" into the bare command
// name and its argument tail.
func splitCommand(text string) (cmd, args string) {
	cmd, args, _ = strings.Cut(text, " ")
	cmd = strings.TrimPrefix(cmd, "/")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd, strings.TrimSpace(args)
}

// messageText returns whichever of text and caption the message
// carries; attachments put their accompanying text in the caption.
func messageText(m *telegram.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// audioPrompt downloads the message's voice or audio attachment. The
// platform records voice notes as OGG, which the transcription
// endpoint infers from the extension.
func (b *Bot) audioPrompt(ctx context.Context, m *telegram.Message) (*ai.Audio, error) {
	fileID, ok := m.AudioContent()
	if !ok {
		return nil, nil
	}
	data, err := b.fileBytes(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &ai.Audio{Ext: ".ogg", Data: data}, nil
}

// textPrompt extracts a textual prompt from the message: the argument
// tail when the text is a command, the plain text otherwise, and a
// transcription when the message is a voice note.
func (b *Bot) textPrompt(ctx context.Context, m *telegram.Message) (string, error) {
	if m == nil {
		return "", nil
	}
	if audio, err := b.audioPrompt(ctx, m); err != nil {
		return "", err
	} else if audio != nil {
		return b.llm.Transcribe(ctx, *audio)
	}

	text := messageText(m)
	if strings.HasPrefix(text, "/") {
		_, text = splitCommand(text)
	}
	return text, nil
}

// replaceImageURLs swaps in-text URLs for indexed image labels so the
// prompt text still references the images handed over separately.
func replaceImageURLs(text string, indexStart int) (string, []string) {
	urls := imageURLPattern.FindAllString(text, -1)
	i := indexStart
	replaced := imageURLPattern.ReplaceAllStringFunc(text, func(string) string {
		label := fmt.Sprintf("[image %d]", i)
		i++
		return label
	})
	return replaced, urls
}

// extractImages collects the image URLs for a prompt: a quoted photo
// attachment first (as a data URL), then any URLs written in the text.
// Returns the text with URLs replaced by their labels.
func (b *Bot) extractImages(ctx context.Context, m *telegram.Message, text string) (string, []string, error) {
	var imgURLs []string

	// Only the smallest photo variant is fetched; it is the preview
	// resolution and reads fine for analysis.
	if reply := m.ReplyToMessage; reply != nil && len(reply.Photo) > 0 {
		data, err := b.fileBytes(ctx, reply.Photo[0].FileID)
		if err != nil {
			return "", nil, err
		}
		imgURLs = append(imgURLs, imageDataURL(data))
	}

	text, textURLs := replaceImageURLs(text, len(imgURLs)+1)
	imgURLs = append(imgURLs, textURLs...)
	return text, imgURLs, nil
}
