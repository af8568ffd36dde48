package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContentOrdersTextBeforeImages(t *testing.T) {
	content := BuildContent(
		[]string{"describe [image 1] and [image 2]"},
		[]string{"https://example.com/a.png", "https://example.com/b.png"},
		"low",
	)

	require.Len(t, content.Parts, 3)
	assert.Equal(t, PartTypeText, content.Parts[0].Type)
	assert.Equal(t, PartTypeImageURL, content.Parts[1].Type)
	assert.Equal(t, "https://example.com/a.png", content.Parts[1].ImageURL.URL)
	assert.Equal(t, "low", content.Parts[1].ImageURL.Detail)
	assert.Equal(t, PartTypeImageURL, content.Parts[2].Type)
}

func TestMessageContentJSONShape(t *testing.T) {
	plain, err := json.Marshal(TextContent("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(plain))

	structured, err := json.Marshal(BuildContent([]string{"hi"}, []string{"https://x/y.png"}, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"text","text":"hi"},{"type":"image_url","image_url":{"url":"https://x/y.png"}}]`, string(structured))
}

func TestMessageContentUnmarshalBothShapes(t *testing.T) {
	var plain MessageContent
	require.NoError(t, json.Unmarshal([]byte(`"just text"`), &plain))
	assert.False(t, plain.IsStructured())
	assert.Equal(t, "just text", plain.Text)

	var structured MessageContent
	require.NoError(t, json.Unmarshal([]byte(`[{"type":"text","text":"a"},{"type":"image_url","image_url":{"url":"u"}}]`), &structured))
	assert.True(t, structured.IsStructured())
	assert.True(t, structured.HasImage())
	assert.Equal(t, "a", structured.PlainText())
}

func TestRequiresVisionModel(t *testing.T) {
	textOnly := []ChatEntry{
		{Role: RoleUser, Content: TextContent("a plain https://example.com link")},
	}
	assert.False(t, RequiresVisionModel(textOnly))

	structuredNoImage := []ChatEntry{
		{Role: RoleUser, Content: MessageContent{Parts: []ContentPart{{Type: PartTypeText, Text: "hi"}}}},
	}
	assert.False(t, RequiresVisionModel(structuredNoImage))

	withImage := []ChatEntry{
		{Role: RoleUser, Content: TextContent("earlier")},
		{Role: RoleUser, Content: BuildContent([]string{"see"}, []string{"https://x/y.png"}, "low")},
	}
	assert.True(t, RequiresVisionModel(withImage))
}

func TestSelectModelSettings(t *testing.T) {
	chat := ModelSettings{Model: "chat-model", MaxTokens: 100}
	vision := ModelSettings{Model: "vision-model", MaxTokens: 200}

	got, err := SelectModelSettings([]ChatEntry{{Content: TextContent("hi")}}, vision, chat)
	require.NoError(t, err)
	assert.Equal(t, "chat-model", got.Model)

	withImage := []ChatEntry{{Content: BuildContent(nil, []string{"u"}, "")}}
	got, err = SelectModelSettings(withImage, vision, chat)
	require.NoError(t, err)
	assert.Equal(t, "vision-model", got.Model)

	// Selection is per call; a text-only follow-up drops back to the
	// chat model.
	got, err = SelectModelSettings([]ChatEntry{{Content: TextContent("next")}}, vision, chat)
	require.NoError(t, err)
	assert.Equal(t, "chat-model", got.Model)

	_, err = SelectModelSettings(nil, vision, ModelSettings{})
	assert.Error(t, err)
}

func TestMessageContentSQLRoundTrip(t *testing.T) {
	content := BuildContent([]string{"txt"}, []string{"https://x/y.png"}, "low")
	value, err := content.Value()
	require.NoError(t, err)

	var scanned MessageContent
	require.NoError(t, scanned.Scan(value))
	require.Len(t, scanned.Parts, 2)
	assert.Equal(t, content.Parts[0].Text, scanned.Parts[0].Text)
	assert.Equal(t, content.Parts[1].ImageURL.URL, scanned.Parts[1].ImageURL.URL)
}
