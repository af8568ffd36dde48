package router

import (
	"net/http"
	"strconv"

	"multiai-telebot/backend/conversation/repository"
	"multiai-telebot/backend/conversation/service"
	"multiai-telebot/backend/internal/access"
	"multiai-telebot/backend/pkg/config"
	"multiai-telebot/backend/pkg/errors"
	"multiai-telebot/backend/pkg/health"
	"multiai-telebot/backend/pkg/jwt"
	"multiai-telebot/backend/pkg/logger"
	"multiai-telebot/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries the collaborators the ops API exposes.
type Options struct {
	Config    *config.Config
	Settings  *config.Runtime
	Logger    *logger.Logger
	JWT       *jwt.Service
	Health    *health.Checker
	Chat      *service.ChatService
	Builder   *service.ContextBuilder
	Repo      repository.ConversationRepository
	Whitelist *access.Whitelist
	Sweeper   *service.Sweeper
}

// Router serves the operator API: health, metrics, runtime settings,
// conversation inspection and the live debug console.
type Router struct {
	Engine *gin.Engine
	opts   Options
}

// New builds the engine with the shared middleware chain.
func New(opts Options) *Router {
	logger.SetGlobal(opts.Logger)

	if opts.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(opts.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(opts.Logger)
	engine.Use(rateLimiter.Middleware())

	return &Router{Engine: engine, opts: opts}
}

// SetupRoutes registers all routes.
func (r *Router) SetupRoutes() {
	r.Engine.GET("/health", gin.WrapF(r.opts.Health.HTTPHandler()))
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Engine.POST("/api/admin/login", r.login)

	admin := r.Engine.Group("/api/admin")
	admin.Use(middleware.JWTAuthMiddleware(r.opts.JWT))
	{
		admin.GET("/config", r.showConfig)
		admin.GET("/config/:path", r.getConfig)
		admin.PUT("/config/:path", r.setConfig)
		admin.DELETE("/config/:path", r.resetConfig)

		admin.GET("/conversations/:id", r.getConversation)
		admin.GET("/conversations/:id/context", r.getContext)
		admin.POST("/conversations/:id/erase", r.eraseConversation)
		admin.DELETE("/conversations/:id", r.deleteConversation)

		admin.POST("/purge", r.purge)

		admin.GET("/whitelist", r.listWhitelist)
		admin.POST("/whitelist/:id", r.addWhitelist)
		admin.DELETE("/whitelist/:id", r.removeWhitelist)

		admin.GET("/console", r.console)
	}
}

func (r *Router) login(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeValidation, "secret is required"))
		return
	}

	token, err := r.opts.JWT.Login(req.Secret)
	if err != nil {
		c.Error(errors.NewUnauthorizedError(errors.CodeValidation, "invalid admin secret"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (r *Router) showConfig(c *gin.Context) {
	out := make(map[string]string)
	for _, path := range config.Paths() {
		if value, err := r.opts.Settings.Get(path); err == nil {
			out[path] = value
		}
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) getConfig(c *gin.Context) {
	value, err := r.opts.Settings.Get(c.Param("path"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": c.Param("path"), "value": value})
}

func (r *Router) setConfig(c *gin.Context) {
	var req struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeValidation, "value is required"))
		return
	}
	if err := r.opts.Settings.Set(c.Param("path"), req.Value); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": c.Param("path"), "value": req.Value})
}

func (r *Router) resetConfig(c *gin.Context) {
	path := c.Param("path")
	if err := r.opts.Settings.Reset(path); err != nil {
		c.Error(err)
		return
	}
	value, _ := r.opts.Settings.Get(path)
	c.JSON(http.StatusOK, gin.H{"path": path, "value": value})
}

func conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeValidation, "conversation id must be numeric"))
		return 0, false
	}
	return id, true
}

func (r *Router) getConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	conv, err := r.opts.Repo.Find(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	if conv == nil {
		c.Error(errors.NewConversationNotFound(id))
		return
	}
	count, err := r.opts.Repo.CountMessages(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              conv.ID,
		"directive":       conv.Directive,
		"last_message_at": conv.LastMessageAt,
		"message_count":   count,
	})
}

// getContext renders the exact context the next completion would
// receive, synthetic directive entry included.
func (r *Router) getContext(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.Error(errors.NewBadRequestError(errors.CodeValidation, "limit must be a non-negative integer"))
		return
	}

	entries, err := r.opts.Builder.Build(c.Request.Context(), id, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": id, "entries": entries})
}

func (r *Router) eraseConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := r.opts.Chat.Forget(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) deleteConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := r.opts.Chat.DeleteConversation(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) purge(c *gin.Context) {
	purged, err := r.opts.Sweeper.PurgeNow(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}

func (r *Router) listWhitelist(c *gin.Context) {
	ids, err := r.opts.Whitelist.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

func (r *Router) addWhitelist(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := r.opts.Whitelist.Add(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) removeWhitelist(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := r.opts.Whitelist.Remove(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
