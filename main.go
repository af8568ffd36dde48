package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/models"
	"multiai-telebot/backend/conversation/repository"
	"multiai-telebot/backend/conversation/service"
	"multiai-telebot/backend/internal/access"
	"multiai-telebot/backend/internal/bot"
	"multiai-telebot/backend/internal/telegram"
	"multiai-telebot/backend/pkg/cache"
	"multiai-telebot/backend/pkg/config"
	"multiai-telebot/backend/pkg/health"
	"multiai-telebot/backend/pkg/jwt"
	"multiai-telebot/backend/pkg/logger"
	"multiai-telebot/backend/pkg/middleware"
	"multiai-telebot/backend/pkg/resilience"
	"multiai-telebot/backend/pkg/router"
	"multiai-telebot/backend/pkg/secrets"
	"multiai-telebot/backend/shared/observability"
	"multiai-telebot/backend/shared/redis"

	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.GetGlobal().Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.Format == "json",
	})
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Secrets may come from Vault; the environment is the fallback.
	secretsManager, err := secrets.NewVaultManager(log)
	if err != nil {
		log.LogError(err, "failed to initialize secrets manager")
		os.Exit(1)
	}
	telegramToken := secretsManager.GetSecretWithDefault(ctx, secrets.KeyTelegramToken, cfg.Telegram.Token)
	openAIKey := secretsManager.GetSecretWithDefault(ctx, secrets.KeyOpenAIAPIKey, cfg.OpenAI.APIKey)

	shutdownObservability, err := observability.Init("multiai-telebot")
	if err != nil {
		log.LogError(err, "failed to initialize observability")
		os.Exit(1)
	}
	defer shutdownObservability()

	db, err := config.NewDB(cfg)
	if err != nil {
		log.LogError(err, "failed to connect to database")
		os.Exit(1)
	}
	if err := db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		log.LogError(err, "failed to migrate database schema")
		os.Exit(1)
	}

	rdb := redis.NewClient(redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx); err != nil {
		log.Warn("redis unavailable at startup, whitelist lookups will fail until it recovers", "error", err.Error())
	}

	healthChecker := health.NewChecker(log, 30*time.Second)
	healthChecker.RegisterDatabaseCheck(func() error { return config.TestConnection(db) })
	healthChecker.RegisterRedisCheck(func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return rdb.Ping(checkCtx)
	})
	healthChecker.Start()

	openAIClient, err := ai.NewOpenAIClient(ai.OpenAIOptions{
		APIKey:           openAIKey,
		BaseURL:          cfg.OpenAI.BaseURL,
		Timeout:          cfg.OpenAI.Timeout,
		TranslationModel: cfg.Models.TranslationModel,
		TranscribeModel:  cfg.Models.TranscribeModel,
		SpeechModel:      cfg.Models.SpeechModel,
		SpeechVoice:      cfg.Models.SpeechVoice,
		ImageModel:       cfg.Models.ImageModel,
		ImageSize:        cfg.Models.ImageSize,
	})
	if err != nil {
		log.LogError(err, "failed to create AI client")
		os.Exit(1)
	}
	llm := ai.WithCircuitBreaker(openAIClient,
		resilience.NewCircuitBreaker(resilience.DefaultConfig("openai"), log))

	settings := config.NewRuntime(cfg)
	repo := repository.NewGormConversationRepository(db)
	wlist := access.NewWhitelist(rdb)

	tgClient := telegram.NewClient(cfg.Telegram.APIBaseURL, telegramToken,
		time.Duration(cfg.Telegram.PollTimeout+30)*time.Second)

	chatService := service.NewChatService(repo, llm, settings, log, "assistant")
	contextBuilder := service.NewContextBuilder(repo)
	sweeper := service.NewSweeper(repo, settings, cfg.Chat.PurgeInterval, log)
	go sweeper.Run(ctx)

	mediaCache := cache.New(cache.Options{
		DefaultExpiration: cfg.Cache.TTL,
		CleanupInterval:   cfg.Cache.PurgeWindow,
		MaxItems:          cfg.Cache.MaxSize,
	})
	botLimiter := middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
	})

	b := bot.New(bot.Options{
		Telegram:    tgClient,
		Chat:        chatService,
		Sweeper:     sweeper,
		LLM:         llm,
		Settings:    settings,
		Whitelist:   wlist,
		Limiter:     botLimiter,
		MediaCache:  mediaCache,
		Logger:      log,
		AdminID:     cfg.Telegram.AdminID,
		PollTimeout: cfg.Telegram.PollTimeout,
	})

	jwtService := jwt.NewService(cfg.Admin.JWTSecret, cfg.Admin.SecretHash, cfg.Admin.TokenExpiry)
	r := router.New(router.Options{
		Config:    cfg,
		Settings:  settings,
		Logger:    log,
		JWT:       jwtService,
		Health:    healthChecker,
		Chat:      chatService,
		Builder:   contextBuilder,
		Repo:      repo,
		Whitelist: wlist,
		Sweeper:   sweeper,
	})
	r.SetupRoutes()

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}
	go func() {
		log.Info("ops API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "ops API server failed")
			stop()
		}
	}()

	go func() {
		if err := b.Run(ctx); err != nil && ctx.Err() == nil {
			log.LogError(err, "bot stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "ops API shutdown failed")
	}
}
