package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIOptions configures the OpenAI client. Model selection for chat
// calls is passed per request (see ModelSettings); the options here
// cover the auxiliary endpoints.
type OpenAIOptions struct {
	APIKey           string
	BaseURL          string
	Timeout          time.Duration
	TranslationModel string
	TranscribeModel  string
	SpeechModel      string
	SpeechVoice      string
	ImageModel       string
	ImageSize        string
}

// OpenAIClient implements Client against the OpenAI HTTP API.
type OpenAIClient struct {
	opts       OpenAIOptions
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI-backed client.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOpenAIBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	return &OpenAIClient{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatEntry     `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("openai: [%s] %s", e.Type, e.Message)
}

func (c *OpenAIClient) post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	return c.httpClient.Do(req)
}

func (c *OpenAIClient) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.post(ctx, path, "application/json", bytes.NewReader(body))
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var wrapper struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil {
		return wrapper.Error
	}
	return fmt.Errorf("openai: unexpected status %d: %s", resp.StatusCode, string(body))
}

// Chat implements Client.
func (c *OpenAIClient) Chat(ctx context.Context, entries []ChatEntry, settings ModelSettings) (string, error) {
	resp, err := c.postJSON(ctx, "/chat/completions", chatCompletionRequest{
		Model:     settings.Model,
		Messages:  entries,
		MaxTokens: settings.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if completion.Error != nil {
		return "", completion.Error
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai: empty completion")
	}
	return completion.Choices[0].Message.Content, nil
}

// ChatStream implements Client. Fragments arrive as SSE data lines; the
// first delta of a stream is empty and is skipped, and the stream ends
// at the stop finish reason or the [DONE] sentinel.
func (c *OpenAIClient) ChatStream(ctx context.Context, entries []ChatEntry, settings ModelSettings, fn StreamHandler) (string, error) {
	resp, err := c.postJSON(ctx, "/chat/completions", chatCompletionRequest{
		Model:     settings.Model,
		Messages:  entries,
		MaxTokens: settings.MaxTokens,
		Stream:    true,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return full.String(), fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason == "stop" {
			break
		}
		if choice.Delta.Content == "" {
			continue
		}
		full.WriteString(choice.Delta.Content)
		if err := fn(choice.Delta.Content); err != nil {
			return full.String(), err
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("stream read failed: %w", err)
	}
	return full.String(), nil
}

var translationSchema = json.RawMessage(`{
	"type": "json_schema",
	"json_schema": {
		"name": "translation",
		"schema": {
			"type": "object",
			"properties": {
				"src_lang": {"type": "string"},
				"dst_lang": {"type": "string"},
				"original_text": {"type": "string"},
				"translated_text": {"type": "string"}
			},
			"required": ["src_lang", "dst_lang", "original_text", "translated_text"],
			"additionalProperties": false
		},
		"strict": true
	}
}`)

// Translate implements Client.
func (c *OpenAIClient) Translate(ctx context.Context, text, dstLang string) (*Translation, error) {
	if dstLang == "" {
		dstLang = "English"
	}
	resp, err := c.postJSON(ctx, "/chat/completions", chatCompletionRequest{
		Model: c.opts.TranslationModel,
		Messages: []ChatEntry{
			{Role: RoleSystem, Content: TextContent(fmt.Sprintf("Translate the prompt to %q.", dstLang))},
			{Role: RoleUser, Content: TextContent(text)},
		},
		ResponseFormat: translationSchema,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty translation")
	}

	var tr Translation
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &tr); err != nil {
		return nil, fmt.Errorf("failed to parse translation: %w", err)
	}
	return &tr, nil
}

// Transcribe implements Client. The endpoint infers the audio format
// from the filename extension, so the caller-provided extension is
// preserved.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio Audio) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio"+audio.Ext)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return "", err
	}
	if err := writer.WriteField("model", c.opts.TranscribeModel); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	resp, err := c.post(ctx, "/audio/transcriptions", writer.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcription: %w", err)
	}
	return result.Text, nil
}

// Speak implements Client.
func (c *OpenAIClient) Speak(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.postJSON(ctx, "/audio/speech", map[string]any{
		"model": c.opts.SpeechModel,
		"voice": c.opts.SpeechVoice,
		"input": text,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

// GenerateImages implements Client.
func (c *OpenAIClient) GenerateImages(ctx context.Context, prompt string, n int) ([][]byte, error) {
	if n <= 0 {
		n = 1
	}
	resp, err := c.postJSON(ctx, "/images/generations", map[string]any{
		"model":           c.opts.ImageModel,
		"prompt":          prompt,
		"n":               n,
		"size":            c.opts.ImageSize,
		"response_format": "b64_json",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var result struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode image response: %w", err)
	}

	images := make([][]byte, 0, len(result.Data))
	for _, d := range result.Data {
		raw, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image data: %w", err)
		}
		images = append(images, raw)
	}
	return images, nil
}
