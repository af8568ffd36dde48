package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, loaded once at startup.
// Every recognized option is a named, typed field; there is no
// schemaless tree to probe at runtime.
type Config struct {
	// Server configuration (ops/admin HTTP surface)
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		// Driver is "postgres" or "sqlite".
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		// Path is the database file for the sqlite driver.
		Path string
	}

	// Redis configuration (whitelist store)
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Chat holds the retention-engine defaults. The values double as
	// the reset targets of the runtime settings surface.
	Chat struct {
		MaxMessages      int
		PurgeDays        int
		PurgeInterval    time.Duration
		DefaultDirective string
		Stream           bool
		MaxContextItems  int
	}

	// Models holds per-modality model selection.
	Models struct {
		ChatModel        string
		ChatMaxTokens    int
		VisionModel      string
		VisionMaxTokens  int
		VisionDetail     string
		TranslationModel string
		TranscribeModel  string
		SpeechModel      string
		SpeechVoice      string
		ImageModel       string
		ImageSize        string
	}

	// Telegram transport settings. The token may instead come from the
	// secrets manager.
	Telegram struct {
		Token       string
		APIBaseURL  string
		PollTimeout int
		AdminID     int64
	}

	// OpenAI backend settings. The key may instead come from the
	// secrets manager.
	OpenAI struct {
		APIKey  string
		BaseURL string
		Timeout time.Duration
	}

	// Admin API authentication
	Admin struct {
		SecretHash  string
		JWTSecret   string
		TokenExpiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
	}

	// Cache settings (media fetch cache)
	Cache struct {
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

// Load reads configuration from the environment (and .env when
// present) and validates it. Unknown or malformed values fail here, at
// startup, not at first access.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

	cfg.Database.Driver = getEnvString("DB_DRIVER", "postgres")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "multiai-telebot")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Path = getEnvString("DB_PATH", "bot.db")

	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Chat.MaxMessages = getEnvInt("CHAT_MAX_MESSAGES", 50)
	cfg.Chat.PurgeDays = getEnvInt("CHAT_PURGE_DAYS", 30)
	cfg.Chat.PurgeInterval = getEnvDuration("CHAT_PURGE_INTERVAL", 12*time.Hour)
	cfg.Chat.DefaultDirective = getEnvString("CHAT_DEFAULT_DIRECTIVE", "You are a helpful assistant.")
	cfg.Chat.Stream = getEnvBool("CHAT_STREAM", true)
	cfg.Chat.MaxContextItems = getEnvInt("CHAT_MAX_CONTEXT_ITEMS", 0)

	cfg.Models.ChatModel = getEnvString("CHAT_MODEL", "gpt-4o-mini")
	cfg.Models.ChatMaxTokens = getEnvInt("CHAT_MAX_TOKENS", 1024)
	cfg.Models.VisionModel = getEnvString("VISION_MODEL", "gpt-4o")
	cfg.Models.VisionMaxTokens = getEnvInt("VISION_MAX_TOKENS", 1024)
	cfg.Models.VisionDetail = getEnvString("VISION_DETAIL", "low")
	cfg.Models.TranslationModel = getEnvString("TRANSLATION_MODEL", "gpt-4o-mini")
	cfg.Models.TranscribeModel = getEnvString("TRANSCRIBE_MODEL", "whisper-1")
	cfg.Models.SpeechModel = getEnvString("SPEECH_MODEL", "tts-1")
	cfg.Models.SpeechVoice = getEnvString("SPEECH_VOICE", "alloy")
	cfg.Models.ImageModel = getEnvString("IMAGE_MODEL", "dall-e-3")
	cfg.Models.ImageSize = getEnvString("IMAGE_SIZE", "1024x1024")

	cfg.Telegram.Token = getEnvString("TELEGRAM_API_KEY", "")
	cfg.Telegram.APIBaseURL = getEnvString("TELEGRAM_API_BASE_URL", "https://api.telegram.org")
	cfg.Telegram.PollTimeout = getEnvInt("TELEGRAM_POLL_TIMEOUT", 30)
	cfg.Telegram.AdminID = getEnvInt64("TELEGRAM_ADMIN_ID", 0)

	cfg.OpenAI.APIKey = getEnvString("OPENAI_API_KEY", "")
	cfg.OpenAI.BaseURL = getEnvString("OPENAI_BASE_URL", "")
	cfg.OpenAI.Timeout = getEnvDuration("OPENAI_TIMEOUT", 120*time.Second)

	cfg.Admin.SecretHash = getEnvString("ADMIN_SECRET_HASH", "")
	cfg.Admin.JWTSecret = getEnvString("JWT_SECRET", "")
	cfg.Admin.TokenExpiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	cfg.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)

	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Chat.MaxMessages <= 0 {
		return fmt.Errorf("config: CHAT_MAX_MESSAGES must be positive, got %d", c.Chat.MaxMessages)
	}
	if c.Chat.PurgeDays <= 0 {
		return fmt.Errorf("config: CHAT_PURGE_DAYS must be positive, got %d", c.Chat.PurgeDays)
	}
	if c.Chat.MaxContextItems < 0 {
		return fmt.Errorf("config: CHAT_MAX_CONTEXT_ITEMS must not be negative, got %d", c.Chat.MaxContextItems)
	}
	if c.Models.ChatModel == "" || c.Models.VisionModel == "" {
		return fmt.Errorf("config: chat and vision models must be set")
	}
	return nil
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
