package ai

import "context"

// Translation is the structured result of a translate call.
type Translation struct {
	SrcLang        string `json:"src_lang"`
	DstLang        string `json:"dst_lang"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
}

// Audio carries raw audio bytes plus the filename extension the
// transcription endpoint uses to infer the container format.
type Audio struct {
	Ext  string
	Data []byte
}

// StreamHandler receives incremental completion fragments. It is called
// once per non-empty fragment, in order.
type StreamHandler func(delta string) error

// Client is the capability set a backing LLM vendor must provide. The
// engine depends only on this interface; one concrete implementation
// exists per vendor.
type Client interface {
	// Chat sends the ordered context and returns the completion text.
	Chat(ctx context.Context, entries []ChatEntry, settings ModelSettings) (string, error)

	// ChatStream sends the ordered context and delivers the completion
	// incrementally through fn, returning the assembled text.
	ChatStream(ctx context.Context, entries []ChatEntry, settings ModelSettings, fn StreamHandler) (string, error)

	// Translate translates text into dstLang.
	Translate(ctx context.Context, text, dstLang string) (*Translation, error)

	// Transcribe turns speech into text.
	Transcribe(ctx context.Context, audio Audio) (string, error)

	// Speak turns text into speech.
	Speak(ctx context.Context, text string) ([]byte, error)

	// GenerateImages renders n images for the prompt and returns their
	// raw bytes.
	GenerateImages(ctx context.Context, prompt string, n int) ([][]byte, error)
}
