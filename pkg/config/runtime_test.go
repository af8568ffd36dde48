package config

import (
	"testing"

	"multiai-telebot/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runtimeFixture() *Runtime {
	cfg := &Config{}
	cfg.Chat.MaxMessages = 50
	cfg.Chat.PurgeDays = 30
	cfg.Chat.DefaultDirective = "You are a helpful assistant."
	cfg.Chat.Stream = true
	cfg.Chat.MaxContextItems = 0
	cfg.Models.ChatModel = "gpt-4o-mini"
	cfg.Models.ChatMaxTokens = 1024
	cfg.Models.VisionModel = "gpt-4o"
	cfg.Models.VisionMaxTokens = 1024
	cfg.Models.VisionDetail = "low"
	return NewRuntime(cfg)
}

func TestRuntimeGetSetReset(t *testing.T) {
	rt := runtimeFixture()

	v, err := rt.Get(PathMaxMessages)
	require.NoError(t, err)
	assert.Equal(t, "50", v)

	require.NoError(t, rt.Set(PathMaxMessages, "10"))
	assert.Equal(t, 10, rt.MaxMessages())

	require.NoError(t, rt.Reset(PathMaxMessages))
	assert.Equal(t, 50, rt.MaxMessages())
}

func TestRuntimeRejectsUnknownPath(t *testing.T) {
	rt := runtimeFixture()

	_, err := rt.Get("chat.unknown")
	assert.True(t, errors.IsCode(err, errors.CodeUnknownConfigPath))

	err = rt.Set("nope", "1")
	assert.True(t, errors.IsCode(err, errors.CodeUnknownConfigPath))

	err = rt.Reset("nope")
	assert.True(t, errors.IsCode(err, errors.CodeUnknownConfigPath))
}

func TestRuntimeRejectsInvalidValues(t *testing.T) {
	rt := runtimeFixture()

	assert.Error(t, rt.Set(PathMaxMessages, "0"))
	assert.Error(t, rt.Set(PathMaxMessages, "-3"))
	assert.Error(t, rt.Set(PathMaxMessages, "many"))
	assert.Error(t, rt.Set(PathPurgeDays, "0"))
	assert.Error(t, rt.Set(PathStream, "maybe"))
	assert.Error(t, rt.Set(PathChatModel, ""))
	assert.Error(t, rt.Set(PathMaxContextItems, "-1"))

	// Nothing changed.
	assert.Equal(t, 50, rt.MaxMessages())
	assert.Equal(t, 30, rt.PurgeDays())
}

func TestRuntimeDefaultDirective(t *testing.T) {
	rt := runtimeFixture()

	d := rt.DefaultDirective()
	require.NotNil(t, d)
	assert.Equal(t, "You are a helpful assistant.", *d)

	// An empty directive reads as unset.
	require.NoError(t, rt.Set(PathDefaultDirective, ""))
	assert.Nil(t, rt.DefaultDirective())
}

func TestRuntimeModelSettings(t *testing.T) {
	rt := runtimeFixture()

	chat := rt.ChatModelSettings()
	assert.Equal(t, "gpt-4o-mini", chat.Model)
	assert.Equal(t, 1024, chat.MaxTokens)

	require.NoError(t, rt.Set(PathVisionModel, "gpt-4o-2024"))
	require.NoError(t, rt.Set(PathVisionMaxTokens, "2048"))
	vision := rt.VisionModelSettings()
	assert.Equal(t, "gpt-4o-2024", vision.Model)
	assert.Equal(t, 2048, vision.MaxTokens)
}

func TestPathsCoverEverySetting(t *testing.T) {
	rt := runtimeFixture()
	for _, path := range Paths() {
		_, err := rt.Get(path)
		assert.NoError(t, err, path)
	}
}
