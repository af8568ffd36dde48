package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second)
}

func TestSendMessageReturnsSentID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(42), req["chat_id"])
		assert.Equal(t, "hello", req["text"])
		assert.Equal(t, float64(7), req["reply_to_message_id"])

		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 99, "chat": map[string]any{"id": 42}},
		})
	})

	id, err := client.SendMessage(context.Background(), 42, "hello", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
}

func TestSendMessageSurfacesAPIFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"description": "Bad Request: chat not found",
		})
	})

	_, err := client.SendMessage(context.Background(), 1, "x", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestGetUpdatesParsesBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/getUpdates", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("offset"))

		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{
					"update_id": 5,
					"message": map[string]any{
						"message_id": 1,
						"chat":       map[string]any{"id": -100, "type": "group"},
						"from":       map[string]any{"id": 9, "username": "alice"},
						"text":       "/chat hi",
					},
				},
				{
					"update_id": 6,
					"my_chat_member": map[string]any{
						"chat":            map[string]any{"id": -100, "type": "group"},
						"new_chat_member": map[string]any{"status": "left"},
					},
				},
			},
		})
	})

	updates, err := client.GetUpdates(context.Background(), 5, 30)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "/chat hi", updates[0].Message.Text)
	assert.Equal(t, "alice", updates[0].Message.From.Username)

	require.NotNil(t, updates[1].MyChatMember)
	assert.Equal(t, "left", updates[1].MyChatMember.NewChatMember.Status)
}

func TestSendVoiceUsesMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendVoice", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("chat_id"))
		_, header, err := r.FormFile("voice")
		require.NoError(t, err)
		assert.Equal(t, "voice.ogg", header.Filename)

		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 55, "chat": map[string]any{"id": 42}},
		})
	})

	id, err := client.SendVoice(context.Background(), 42, []byte("oggdata"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(55), id)
}

func TestGetFileBytesDownloadsContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/getFile":
			json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"file_id": "abc", "file_path": "voice/file_1.ogg"},
			})
		case "/file/bottest-token/voice/file_1.ogg":
			w.Write([]byte("audio-bytes"))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	data, err := client.GetFileBytes(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)
}

func TestAudioContent(t *testing.T) {
	var m Message
	_, ok := m.AudioContent()
	assert.False(t, ok)

	m.Voice = &Voice{FileID: "v1"}
	id, ok := m.AudioContent()
	assert.True(t, ok)
	assert.Equal(t, "v1", id)

	// An audio attachment wins over voice.
	m.Audio = &Audio{FileID: "a1"}
	id, _ = m.AudioContent()
	assert.Equal(t, "a1", id)
}
