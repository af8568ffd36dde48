package ai

import (
	"context"

	"multiai-telebot/backend/pkg/resilience"
)

// resilientClient guards every backend call with a circuit breaker so
// a dead vendor endpoint sheds load instead of stacking timeouts.
type resilientClient struct {
	inner   Client
	breaker *resilience.CircuitBreaker
}

// WithCircuitBreaker wraps a client with breaker protection.
func WithCircuitBreaker(inner Client, breaker *resilience.CircuitBreaker) Client {
	return &resilientClient{inner: inner, breaker: breaker}
}

func (c *resilientClient) Chat(ctx context.Context, entries []ChatEntry, settings ModelSettings) (string, error) {
	var out string
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.inner.Chat(ctx, entries, settings)
		return err
	})
	return out, err
}

func (c *resilientClient) ChatStream(ctx context.Context, entries []ChatEntry, settings ModelSettings, fn StreamHandler) (string, error) {
	var out string
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.inner.ChatStream(ctx, entries, settings, fn)
		return err
	})
	return out, err
}

func (c *resilientClient) Translate(ctx context.Context, text, dstLang string) (*Translation, error) {
	var out *Translation
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.inner.Translate(ctx, text, dstLang)
		return err
	})
	return out, err
}

func (c *resilientClient) Transcribe(ctx context.Context, audio Audio) (string, error) {
	var out string
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.inner.Transcribe(ctx, audio)
		return err
	})
	return out, err
}

func (c *resilientClient) Speak(ctx context.Context, text string) ([]byte, error) {
	var out []byte
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.inner.Speak(ctx, text)
		return err
	})
	return out, err
}

func (c *resilientClient) GenerateImages(ctx context.Context, prompt string, n int) ([][]byte, error) {
	var out [][]byte
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.inner.GenerateImages(ctx, prompt, n)
		return err
	})
	return out, err
}
