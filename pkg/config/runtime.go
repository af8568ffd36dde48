package config

import (
	"fmt"
	"strconv"
	"sync"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/pkg/errors"
)

// Settings are the chat options an operator may change while the bot
// runs. Each one maps to a dotted path on the settings surface.
type Settings struct {
	MaxMessages      int
	PurgeDays        int
	DefaultDirective string
	Stream           bool
	MaxContextItems  int
	ChatModel        string
	ChatMaxTokens    int
	VisionModel      string
	VisionMaxTokens  int
	VisionDetail     string
}

// Recognized settings paths.
const (
	PathMaxMessages      = "chat.max_messages"
	PathPurgeDays        = "chat.purge_days"
	PathDefaultDirective = "chat.default_directive"
	PathStream           = "chat.stream"
	PathMaxContextItems  = "chat.max_context_items"
	PathChatModel        = "chat.model"
	PathChatMaxTokens    = "chat.max_tokens"
	PathVisionModel      = "vision.model"
	PathVisionMaxTokens  = "vision.max_tokens"
	PathVisionDetail     = "vision.detail"
)

// Runtime is the mutable settings surface with get/set/reset per
// recognized path. The set of paths is closed: unknown paths are
// rejected instead of growing a schemaless tree.
type Runtime struct {
	mu       sync.RWMutex
	defaults Settings
	current  Settings
}

// NewRuntime seeds the runtime settings from the loaded configuration;
// the same values serve as reset targets.
func NewRuntime(cfg *Config) *Runtime {
	defaults := Settings{
		MaxMessages:      cfg.Chat.MaxMessages,
		PurgeDays:        cfg.Chat.PurgeDays,
		DefaultDirective: cfg.Chat.DefaultDirective,
		Stream:           cfg.Chat.Stream,
		MaxContextItems:  cfg.Chat.MaxContextItems,
		ChatModel:        cfg.Models.ChatModel,
		ChatMaxTokens:    cfg.Models.ChatMaxTokens,
		VisionModel:      cfg.Models.VisionModel,
		VisionMaxTokens:  cfg.Models.VisionMaxTokens,
		VisionDetail:     cfg.Models.VisionDetail,
	}
	return &Runtime{defaults: defaults, current: defaults}
}

// Snapshot returns a copy of the current settings.
func (r *Runtime) Snapshot() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Runtime) MaxMessages() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.MaxMessages
}

func (r *Runtime) PurgeDays() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.PurgeDays
}

// DefaultDirective returns the directive given to conversations created
// without one, or nil when unset.
func (r *Runtime) DefaultDirective() *string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current.DefaultDirective == "" {
		return nil
	}
	d := r.current.DefaultDirective
	return &d
}

func (r *Runtime) Stream() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Stream
}

func (r *Runtime) MaxContextItems() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.MaxContextItems
}

// ChatModelSettings returns the text-only model pair.
func (r *Runtime) ChatModelSettings() ai.ModelSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ai.ModelSettings{Model: r.current.ChatModel, MaxTokens: r.current.ChatMaxTokens}
}

// VisionModelSettings returns the vision-capable model pair.
func (r *Runtime) VisionModelSettings() ai.ModelSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ai.ModelSettings{Model: r.current.VisionModel, MaxTokens: r.current.VisionMaxTokens}
}

func (r *Runtime) VisionDetail() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.VisionDetail
}

// Get returns the value at a recognized path, rendered as a string.
func (r *Runtime) Get(path string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch path {
	case PathMaxMessages:
		return strconv.Itoa(r.current.MaxMessages), nil
	case PathPurgeDays:
		return strconv.Itoa(r.current.PurgeDays), nil
	case PathDefaultDirective:
		return r.current.DefaultDirective, nil
	case PathStream:
		return strconv.FormatBool(r.current.Stream), nil
	case PathMaxContextItems:
		return strconv.Itoa(r.current.MaxContextItems), nil
	case PathChatModel:
		return r.current.ChatModel, nil
	case PathChatMaxTokens:
		return strconv.Itoa(r.current.ChatMaxTokens), nil
	case PathVisionModel:
		return r.current.VisionModel, nil
	case PathVisionMaxTokens:
		return strconv.Itoa(r.current.VisionMaxTokens), nil
	case PathVisionDetail:
		return r.current.VisionDetail, nil
	default:
		return "", unknownPath(path)
	}
}

// Set parses the value into the field's type and stores it. Values
// that would break an invariant (a non-positive cap, say) are refused.
func (r *Runtime) Set(path, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch path {
	case PathMaxMessages:
		n, err := parsePositiveInt(path, value)
		if err != nil {
			return err
		}
		r.current.MaxMessages = n
	case PathPurgeDays:
		n, err := parsePositiveInt(path, value)
		if err != nil {
			return err
		}
		r.current.PurgeDays = n
	case PathDefaultDirective:
		r.current.DefaultDirective = value
	case PathStream:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return invalidValue(path, value)
		}
		r.current.Stream = b
	case PathMaxContextItems:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return invalidValue(path, value)
		}
		r.current.MaxContextItems = n
	case PathChatModel:
		if value == "" {
			return invalidValue(path, value)
		}
		r.current.ChatModel = value
	case PathChatMaxTokens:
		n, err := parsePositiveInt(path, value)
		if err != nil {
			return err
		}
		r.current.ChatMaxTokens = n
	case PathVisionModel:
		if value == "" {
			return invalidValue(path, value)
		}
		r.current.VisionModel = value
	case PathVisionMaxTokens:
		n, err := parsePositiveInt(path, value)
		if err != nil {
			return err
		}
		r.current.VisionMaxTokens = n
	case PathVisionDetail:
		r.current.VisionDetail = value
	default:
		return unknownPath(path)
	}
	return nil
}

// Reset restores a single path to its startup default.
func (r *Runtime) Reset(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch path {
	case PathMaxMessages:
		r.current.MaxMessages = r.defaults.MaxMessages
	case PathPurgeDays:
		r.current.PurgeDays = r.defaults.PurgeDays
	case PathDefaultDirective:
		r.current.DefaultDirective = r.defaults.DefaultDirective
	case PathStream:
		r.current.Stream = r.defaults.Stream
	case PathMaxContextItems:
		r.current.MaxContextItems = r.defaults.MaxContextItems
	case PathChatModel:
		r.current.ChatModel = r.defaults.ChatModel
	case PathChatMaxTokens:
		r.current.ChatMaxTokens = r.defaults.ChatMaxTokens
	case PathVisionModel:
		r.current.VisionModel = r.defaults.VisionModel
	case PathVisionMaxTokens:
		r.current.VisionMaxTokens = r.defaults.VisionMaxTokens
	case PathVisionDetail:
		r.current.VisionDetail = r.defaults.VisionDetail
	default:
		return unknownPath(path)
	}
	return nil
}

// Paths lists every recognized settings path.
func Paths() []string {
	return []string{
		PathMaxMessages,
		PathPurgeDays,
		PathDefaultDirective,
		PathStream,
		PathMaxContextItems,
		PathChatModel,
		PathChatMaxTokens,
		PathVisionModel,
		PathVisionMaxTokens,
		PathVisionDetail,
	}
}

func unknownPath(path string) error {
	return errors.NewBadRequestError(errors.CodeUnknownConfigPath,
		fmt.Sprintf("%q is not a recognized settings path", path))
}

func invalidValue(path, value string) error {
	return errors.NewBadRequestError(errors.CodeValidation,
		fmt.Sprintf("invalid value %q for %q", value, path))
}

func parsePositiveInt(path, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, invalidValue(path, value)
	}
	return n, nil
}
