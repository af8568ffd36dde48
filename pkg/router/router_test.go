package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/models"
	"multiai-telebot/backend/conversation/repository"
	"multiai-telebot/backend/conversation/service"
	"multiai-telebot/backend/internal/access"
	"multiai-telebot/backend/pkg/config"
	"multiai-telebot/backend/pkg/health"
	"multiai-telebot/backend/pkg/jwt"
	"multiai-telebot/backend/pkg/logger"
	"multiai-telebot/backend/shared/redis"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testAdminSecret = "super-secret"

type stubLLM struct{}

func (stubLLM) Chat(ctx context.Context, entries []ai.ChatEntry, settings ai.ModelSettings) (string, error) {
	return "stub reply", nil
}

func (stubLLM) ChatStream(ctx context.Context, entries []ai.ChatEntry, settings ai.ModelSettings, fn ai.StreamHandler) (string, error) {
	return "stub reply", nil
}

func (stubLLM) Translate(ctx context.Context, text, dstLang string) (*ai.Translation, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubLLM) Transcribe(ctx context.Context, audio ai.Audio) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (stubLLM) Speak(ctx context.Context, text string) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubLLM) GenerateImages(ctx context.Context, prompt string, n int) ([][]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func newTestRouter(t *testing.T) (*Router, repository.ConversationRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Conversation{}, &models.Message{}))

	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.Chat.MaxMessages = 50
	cfg.Chat.PurgeDays = 30
	cfg.Models.ChatModel = "gpt-4o-mini"
	cfg.Models.ChatMaxTokens = 512
	cfg.Models.VisionModel = "gpt-4o"
	cfg.Models.VisionMaxTokens = 512
	cfg.Models.VisionDetail = "low"

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminSecret), bcrypt.MinCost)
	require.NoError(t, err)

	log := logger.New(logger.Config{Level: "error"})
	settings := config.NewRuntime(cfg)
	repo := repository.NewGormConversationRepository(db)
	chatService := service.NewChatService(repo, stubLLM{}, settings, log, "testbot")

	r := New(Options{
		Config:    cfg,
		Settings:  settings,
		Logger:    log,
		JWT:       jwt.NewService("test-jwt-secret", string(hash), time.Hour),
		Health:    health.NewChecker(log, time.Minute),
		Chat:      chatService,
		Builder:   service.NewContextBuilder(repo),
		Repo:      repo,
		Whitelist: access.NewWhitelist(redis.NewClient(redis.Options{Addr: "127.0.0.1:1"})),
		Sweeper:   service.NewSweeper(repo, settings, time.Hour, log),
	})
	r.SetupRoutes()
	return r, repo
}

func doRequest(r *Router, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, r *Router) string {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/api/admin/login", "", gin.H{"secret": testAdminSecret})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLoginRejectsBadSecret(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/admin/login", "", gin.H{"secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/admin/config", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, http.MethodGet, "/api/admin/config", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConfigEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	token := loginToken(t, r)

	w := doRequest(r, http.MethodGet, "/api/admin/config", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Equal(t, "50", all[config.PathMaxMessages])

	w = doRequest(r, http.MethodPut, "/api/admin/config/"+config.PathMaxMessages, token, gin.H{"value": "10"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/admin/config/"+config.PathMaxMessages, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"10"`)

	w = doRequest(r, http.MethodDelete, "/api/admin/config/"+config.PathMaxMessages, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"50"`)
}

func TestConfigUnknownPath(t *testing.T) {
	r, _ := newTestRouter(t)
	token := loginToken(t, r)

	w := doRequest(r, http.MethodGet, "/api/admin/config/chat.bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationEndpoints(t *testing.T) {
	r, repo := newTestRouter(t)
	token := loginToken(t, r)
	ctx := context.Background()

	w := doRequest(r, http.MethodGet, "/api/admin/conversations/1", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := repo.AppendMessage(ctx, repository.AppendParams{
		ConversationID: 1,
		MessageID:      1,
		Role:           ai.RoleUser,
		Content:        ai.TextContent("hello"),
	}, 0)
	require.NoError(t, err)
	require.NoError(t, repo.SetDirective(ctx, 1, "be nice"))

	w = doRequest(r, http.MethodGet, "/api/admin/conversations/1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"message_count":1`)

	w = doRequest(r, http.MethodGet, "/api/admin/conversations/1/context", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Entries []ai.ChatEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, ai.RoleSystem, resp.Entries[0].Role)

	w = doRequest(r, http.MethodPost, "/api/admin/conversations/1/erase", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	count, err := repo.CountMessages(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	w = doRequest(r, http.MethodDelete, "/api/admin/conversations/1", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	conv, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestPurgeEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	token := loginToken(t, r)

	w := doRequest(r, http.MethodPost, "/api/admin/purge", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"purged":0`)
}

func TestHealthEndpointIsPublic(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/health", "", nil)
	// No checks have run yet; the handler still answers.
	assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, w.Code)

	w = doRequest(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
