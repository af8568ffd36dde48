package ai

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Role identifies who produced a chat entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentPart is one typed piece of a structured message content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ImageRef references an image by URL or data URL, with the detail
// hint the vision endpoint accepts.
type ImageRef struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// MessageContent holds a message body that is either a plain string or
// an ordered list of typed parts. Exactly one of Text/Parts is set;
// Parts wins when both are non-zero.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// TextContent wraps a plain string.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// BuildContent constructs structured content: all text parts first, in
// the given order, followed by all image parts in the given order.
func BuildContent(texts []string, imageURLs []string, detail string) MessageContent {
	parts := make([]ContentPart, 0, len(texts)+len(imageURLs))
	for _, t := range texts {
		parts = append(parts, ContentPart{Type: PartTypeText, Text: t})
	}
	for _, u := range imageURLs {
		parts = append(parts, ContentPart{
			Type:     PartTypeImageURL,
			ImageURL: &ImageRef{URL: u, Detail: detail},
		})
	}
	return MessageContent{Parts: parts}
}

// IsStructured reports whether the content is a parts list rather than
// a plain string.
func (c MessageContent) IsStructured() bool {
	return c.Parts != nil
}

// PlainText flattens the content to a single string, joining text
// parts and skipping image parts.
func (c MessageContent) PlainText() string {
	if !c.IsStructured() {
		return c.Text
	}
	out := ""
	for _, p := range c.Parts {
		if p.Type == PartTypeText {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// HasImage reports whether any part references an image.
func (c MessageContent) HasImage() bool {
	for _, p := range c.Parts {
		if p.Type == PartTypeImageURL {
			return true
		}
	}
	return false
}

// MarshalJSON emits a bare string for plain content and an array for
// structured content, matching the chat-completions wire shape.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsStructured() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = MessageContent{Text: s}
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*c = MessageContent{Parts: parts}
	return nil
}

// Value implements driver.Valuer so the content can live in a JSON
// column.
func (c MessageContent) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *MessageContent) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = MessageContent{}
		return nil
	case []byte:
		return c.UnmarshalJSON(v)
	case string:
		return c.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported content column type %T", value)
	}
}

// ChatEntry is one entry of the ordered context sent to the LLM.
type ChatEntry struct {
	Role    Role           `json:"role"`
	Name    string         `json:"name,omitempty"`
	Content MessageContent `json:"content"`
}

// ModelSettings pairs a model identifier with its output token budget.
type ModelSettings struct {
	Model     string
	MaxTokens int
}

var errNoModel = errors.New("no model configured")

// RequiresVisionModel reports whether any entry carries structured
// content with at least one image part. Plain-string content never
// triggers vision mode.
func RequiresVisionModel(entries []ChatEntry) bool {
	for _, e := range entries {
		if e.Content.IsStructured() && e.Content.HasImage() {
			return true
		}
	}
	return false
}

// SelectModelSettings returns the vision pair when the context contains
// image content and the chat pair otherwise. Evaluated fresh per
// request; a conversation may alternate modalities message to message.
func SelectModelSettings(entries []ChatEntry, vision, chat ModelSettings) (ModelSettings, error) {
	settings := chat
	if RequiresVisionModel(entries) {
		settings = vision
	}
	if settings.Model == "" {
		return ModelSettings{}, errNoModel
	}
	return settings, nil
}
