package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// BotConfig holds configuration for the bot process.
type BotConfig struct {
	TelegramAPIBase      string
	Timeout              int
	SleepSeconds         int
	DropPending          bool
	PendingWindowSeconds int64
	PendingMaxMessages   int

	ChatAPIKey       string
	ChatEndpoint     string
	ChatModel        string
	SummarizeAPIKey  string
	SummarizeAPIBase string
	SummarizeModel   string
	SystemPrompt     string

	ChatTemperature      float32
	SummarizeTemperature float32

	MaxContextLen  int
	SummaryFailure string

	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	DBPath        string

	TurnTimeout          time.Duration
	RequestTimeout       time.Duration
	CompletionMaxRetries int

	ModelProvider         string
	Commander             string
	DummyProviderScript   string
	DummySummarizerScript string
	DummyCommanderScript  string
	DummySendScript       string
	LogLevel              string
}

// source resolves a key from the environment first, then the config file.
// Values that fail to parse are collected in errs.
type source struct {
	file map[string]string
	errs []error
}

// LoadBotConfig reads configuration from environment variables, falling back
// to the flat YAML file at path (if non-empty) and then to defaults.
func LoadBotConfig(path string) (BotConfig, error) {
	src, err := newSource(path)
	if err != nil {
		return BotConfig{}, err
	}

	cfg := BotConfig{
		Timeout:              src.intOr("TG_TIMEOUT", 30),
		SleepSeconds:         src.intOr("TG_SLEEP_SECONDS", 1),
		DropPending:          src.boolOr("TG_DROP_PENDING", true),
		PendingWindowSeconds: int64(src.intOr("TG_PENDING_WINDOW_SECONDS", 600)),
		PendingMaxMessages:   src.intOr("TG_PENDING_MAX_MESSAGES", 50),

		ChatAPIKey:       src.get("OPENAI_API_KEY_CHAT"),
		ChatEndpoint:     src.or("CHAT_MODEL_ENDPOINT", "https://openrouter.ai/api/v1/chat/completions"),
		ChatModel:        src.or("CHAT_MODEL", "openai/gpt-oss-20b:free"),
		SummarizeAPIKey:  src.get("OPENAI_API_KEY_SUMMARIZE"),
		SummarizeAPIBase: src.or("SUMMARIZE_MODEL_ENDPOINT", "https://api.mistral.ai/v1/chat/completions"),
		SummarizeModel:   src.or("SUMMARIZE_MODEL", "mistral-tiny"),
		SystemPrompt:     src.get("BOTIK_SYSTEM_PROMPT"),

		ChatTemperature:      src.floatOr("CHAT_TEMPERATURE", 0),
		SummarizeTemperature: src.floatOr("SUMMARIZE_TEMPERATURE", 0),

		MaxContextLen:  src.intOr("MAX_CONTEXT_LEN", 6),
		SummaryFailure: strings.ToLower(src.or("BOTIK_SUMMARY_FAILURE", "keep")),

		Store:         strings.ToLower(src.or("BOTIK_STORE", StoreRedis)),
		RedisAddr:     src.or("REDIS_ADDR", "localhost:6379"),
		RedisPassword: src.get("REDIS_PASSWORD"),
		RedisDB:       src.intOr("REDIS_DB", 0),
		SessionTTL:    time.Duration(src.intOr("BOTIK_SESSION_TTL_SECONDS", 0)) * time.Second,
		DBPath:        src.or("BOTIK_DB_PATH", "/state/botik.db"),

		TurnTimeout:          time.Duration(src.intOr("BOTIK_TURN_TIMEOUT_SECONDS", 180)) * time.Second,
		RequestTimeout:       time.Duration(src.intOr("BOTIK_REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
		CompletionMaxRetries: src.intOr("BOTIK_COMPLETION_MAX_RETRIES", 0),

		ModelProvider:         strings.ToLower(src.or("BOTIK_MODEL_PROVIDER", "openai")),
		Commander:             strings.ToLower(src.or("BOTIK_COMMANDER", "telegram")),
		DummyProviderScript:   src.or("BOTIK_DUMMY_PROVIDER_SCRIPT", "ok"),
		DummySummarizerScript: src.or("BOTIK_DUMMY_SUMMARIZER_SCRIPT", "msg:dummy-summary"),
		DummyCommanderScript:  src.or("BOTIK_DUMMY_COMMANDER_SCRIPT", "ok"),
		DummySendScript:       src.or("BOTIK_DUMMY_COMMANDER_SEND_SCRIPT", "ok"),
		LogLevel:              strings.ToLower(src.or("BOTIK_LOG_LEVEL", "info")),
	}

	telegramToken := src.get("TELEGRAM_TOKEN")
	cfg.TelegramAPIBase = fmt.Sprintf("https://api.telegram.org/bot%s", telegramToken)

	if err := errors.Join(errors.Join(src.errs...), cfg.validate(telegramToken)); err != nil {
		return BotConfig{}, err
	}
	return cfg, nil
}

func (c BotConfig) validate(telegramToken string) error {
	var errs []error
	switch c.Commander {
	case "telegram":
		if telegramToken == "" {
			errs = append(errs, errors.New("TELEGRAM_TOKEN is required when BOTIK_COMMANDER=telegram"))
		}
	case "dummy":
	default:
		errs = append(errs, fmt.Errorf("BOTIK_COMMANDER must be telegram or dummy, got %q", c.Commander))
	}
	switch c.ModelProvider {
	case "openai":
		if c.ChatAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY_CHAT is required when BOTIK_MODEL_PROVIDER=openai"))
		}
		if c.SummarizeAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY_SUMMARIZE is required when BOTIK_MODEL_PROVIDER=openai"))
		}
	case "dummy":
	default:
		errs = append(errs, fmt.Errorf("BOTIK_MODEL_PROVIDER must be openai or dummy, got %q", c.ModelProvider))
	}
	switch c.Store {
	case StoreRedis, StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("BOTIK_STORE must be redis, sqlite or memory, got %q", c.Store))
	}
	switch c.SummaryFailure {
	case "keep", "drop":
	default:
		errs = append(errs, fmt.Errorf("BOTIK_SUMMARY_FAILURE must be keep or drop, got %q", c.SummaryFailure))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("BOTIK_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.MaxContextLen <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONTEXT_LEN must be > 0, got %d", c.MaxContextLen))
	}
	if c.TurnTimeout <= 0 {
		errs = append(errs, errors.New("BOTIK_TURN_TIMEOUT_SECONDS must be > 0"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("BOTIK_REQUEST_TIMEOUT_SECONDS must be > 0"))
	}
	if c.CompletionMaxRetries < 0 {
		errs = append(errs, errors.New("BOTIK_COMPLETION_MAX_RETRIES must be >= 0"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("BOTIK_SESSION_TTL_SECONDS must be >= 0"))
	}
	if c.ChatTemperature < 0 || c.ChatTemperature > 2 {
		errs = append(errs, fmt.Errorf("CHAT_TEMPERATURE must be between 0 and 2, got %g", c.ChatTemperature))
	}
	if c.SummarizeTemperature < 0 || c.SummarizeTemperature > 2 {
		errs = append(errs, fmt.Errorf("SUMMARIZE_TEMPERATURE must be between 0 and 2, got %g", c.SummarizeTemperature))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("TG_TIMEOUT must be >= 0"))
	}
	return errors.Join(errs...)
}

func newSource(path string) (*source, error) {
	src := &source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("read config file %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return src, fmt.Errorf("parse config file %s: %w", path, err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		src.file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return src, nil
}

func (s *source) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s *source) or(key, fallback string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return fallback
}

func (s *source) intOr(key string, fallback int) int {
	v := s.get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return fallback
	}
	return n
}

func (s *source) floatOr(key string, fallback float32) float32 {
	v := s.get(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s must be a number, got %q", key, v))
		return fallback
	}
	return float32(f)
}

func (s *source) boolOr(key string, fallback bool) bool {
	v := strings.TrimSpace(s.get(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
		return fallback
	}
	return b
}
