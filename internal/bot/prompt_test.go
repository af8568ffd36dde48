package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	cmd, args := splitCommand("/chat tell me a story")
	assert.Equal(t, "chat", cmd)
	assert.Equal(t, "tell me a story", args)

	cmd, args = splitCommand("/forget")
	assert.Equal(t, "forget", cmd)
	assert.Empty(t, args)

	// The bot mention suffix is dropped.
	cmd, args = splitCommand("/sysmsg@mybot set be nice")
	assert.Equal(t, "sysmsg", cmd)
	assert.Equal(t, "set be nice", args)
}

func TestReplaceImageURLs(t *testing.T) {
	text, urls := replaceImageURLs("compare https://a.example/1.png with https://b.example/2.png please", 1)
	assert.Equal(t, "compare [image 1] with [image 2] please", text)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://a.example/1.png", urls[0])
	assert.Equal(t, "https://b.example/2.png", urls[1])
}

func TestReplaceImageURLsStartsAtGivenIndex(t *testing.T) {
	// When an attached photo already claimed index 1, in-text URLs
	// continue from 2.
	text, urls := replaceImageURLs("and also https://c.example/3.png", 2)
	assert.Equal(t, "and also [image 2]", text)
	require.Len(t, urls, 1)
}

func TestReplaceImageURLsNoURLs(t *testing.T) {
	text, urls := replaceImageURLs("no links here", 1)
	assert.Equal(t, "no links here", text)
	assert.Empty(t, urls)
}

func TestImageDataURL(t *testing.T) {
	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	url := imageDataURL(pngHeader)
	assert.Contains(t, url, "data:image/png;base64,")
}
