package bot

import (
	"context"
	"encoding/base64"
	"net/http"
)

// fileBytes downloads a platform file, serving repeated fetches of the
// same file id from the in-memory cache.
func (b *Bot) fileBytes(ctx context.Context, fileID string) ([]byte, error) {
	if cached, ok := b.media.Get(fileID); ok {
		if data, ok := cached.([]byte); ok {
			return data, nil
		}
	}
	data, err := b.tg.GetFileBytes(ctx, fileID)
	if err != nil {
		return nil, err
	}
	b.media.Set(fileID, data)
	return data, nil
}

// imageDataURL embeds image bytes as a data URL so the vision model
// can read an attachment the platform serves only to the bot.
func imageDataURL(data []byte) string {
	contentType := http.DetectContentType(data)
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
