package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	cmdpkg "github.com/stupiduntilnot/botik/internal/commander"
	"github.com/stupiduntilnot/botik/internal/config"
	"github.com/stupiduntilnot/botik/internal/control"
	"github.com/stupiduntilnot/botik/internal/db"
	"github.com/stupiduntilnot/botik/internal/dispatch"
	"github.com/stupiduntilnot/botik/internal/dummy"
	"github.com/stupiduntilnot/botik/internal/gateway"
	modelpkg "github.com/stupiduntilnot/botik/internal/model"
	"github.com/stupiduntilnot/botik/internal/openai"
	"github.com/stupiduntilnot/botik/internal/redisstore"
	"github.com/stupiduntilnot/botik/internal/session"
	"github.com/stupiduntilnot/botik/internal/telegram"
)

func main() {
	flags := pflag.NewFlagSet("botik", pflag.ExitOnError)
	configPath := flags.String("config", os.Getenv("BOTIK_CONFIG"), "path to a YAML config file")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn or error")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadBotConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botik: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = strings.ToLower(*logLevel)
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("botik exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func run(ctx context.Context, cfg config.BotConfig, logger *slog.Logger) error {
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}

	processEventID, err := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{
		"pid":       os.Getpid(),
		"provider":  cfg.ModelProvider,
		"source":    cfg.Commander,
		"store":     cfg.Store,
		"threshold": cfg.MaxContextLen,
	})
	if err != nil {
		logger.Warn("failed to log process.started", "error", err)
	}
	var parentID *int64
	if processEventID > 0 {
		parentID = &processEventID
	}

	b, closeStore, err := newBot(ctx, cfg, database, parentID, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	logger.Info("botik running",
		"chat_model", cfg.ChatModel,
		"summarize_model", cfg.SummarizeModel,
		"provider", cfg.ModelProvider,
		"source", cfg.Commander,
		"store", cfg.Store,
		"max_context_len", cfg.MaxContextLen,
		"summary_failure", cfg.SummaryFailure,
	)
	b.poll(ctx)

	db.LogEvent(database, parentID, db.EventProcessStopped, map[string]any{"pid": os.Getpid()})
	logger.Info("botik stopped")
	return nil
}

// bot wires the transport to the session controller.
type bot struct {
	cfg        config.BotConfig
	db         *sql.DB
	parentID   *int64
	commander  cmdpkg.Commander
	controller *session.Controller
	circuit    *control.CircuitBreaker
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	// username is the bot's own username, empty until resolved.
	username string
}

func newBot(ctx context.Context, cfg config.BotConfig, database *sql.DB, parentID *int64, logger *slog.Logger) (*bot, func(), error) {
	commander, err := newCommander(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init commander: %w", err)
	}
	chatProvider, summarizeProvider, err := newModelProviders(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init model provider: %w", err)
	}
	store, closeStore, err := newStore(ctx, &cfg, database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init session store: %w", err)
	}
	summaryPolicy, err := session.ParseSummaryFailurePolicy(cfg.SummaryFailure)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	policy := control.DefaultPolicy()
	policy.TurnTimeout = cfg.TurnTimeout
	policy.MaxRetries = cfg.CompletionMaxRetries

	controller, err := session.NewController(session.ControllerConfig{
		Store:         store,
		Completer:     gateway.NewCompletion(chatProvider, cfg.SystemPrompt, logger),
		Summarizer:    gateway.NewSummarization(summarizeProvider, logger),
		Threshold:     cfg.MaxContextLen,
		Policy:        policy,
		SummaryPolicy: summaryPolicy,
		Events:        &db.EventLog{DB: database, ParentID: parentID, Logger: logger},
		Logger:        logger,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	return &bot{
		cfg:        cfg,
		db:         database,
		parentID:   parentID,
		commander:  commander,
		controller: controller,
		circuit:    control.NewCircuitBreaker(5, 30*time.Second),
		dispatcher: dispatch.New(logger),
		logger:     logger,
	}, closeStore, nil
}

func newCommander(cfg *config.BotConfig) (cmdpkg.Commander, error) {
	switch cfg.Commander {
	case "telegram":
		return telegram.NewClient(cfg.TelegramAPIBase, time.Duration(cfg.Timeout+20)*time.Second), nil
	case "dummy":
		return dummy.NewCommander(cfg.DummyCommanderScript, cfg.DummySendScript)
	default:
		return nil, fmt.Errorf("unsupported commander: %s", cfg.Commander)
	}
}

// newModelProviders returns separate providers for chat and summarization,
// each holding its own credentials.
func newModelProviders(cfg *config.BotConfig) (modelpkg.Provider, modelpkg.Provider, error) {
	switch cfg.ModelProvider {
	case "openai":
		chat := openai.NewClient(cfg.ChatAPIKey, cfg.ChatEndpoint, cfg.ChatModel, cfg.RequestTimeout).
			WithTemperature(cfg.ChatTemperature)
		summarize := openai.NewClient(cfg.SummarizeAPIKey, cfg.SummarizeAPIBase, cfg.SummarizeModel, cfg.RequestTimeout).
			WithTemperature(cfg.SummarizeTemperature)
		return chat, summarize, nil
	case "dummy":
		chat, err := dummy.NewProvider(cfg.ChatModel, cfg.DummyProviderScript)
		if err != nil {
			return nil, nil, err
		}
		summarize, err := dummy.NewProvider(cfg.SummarizeModel, cfg.DummySummarizerScript)
		if err != nil {
			return nil, nil, err
		}
		return chat, summarize, nil
	default:
		return nil, nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}

func newStore(ctx context.Context, cfg *config.BotConfig, database *sql.DB) (session.Store, func(), error) {
	noop := func() {}
	switch cfg.Store {
	case config.StoreRedis:
		s, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.StoreSQLite:
		return &db.SessionStore{DB: database}, noop, nil
	case config.StoreMemory:
		return session.NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

// poll long-polls for updates until ctx is done, then waits for in-flight
// turns to finish.
func (b *bot) poll(ctx context.Context) {
	defer b.dispatcher.Wait()

	if me, err := b.commander.GetMe(ctx); err != nil {
		b.logger.Warn("getMe failed; accepting commands addressed to any bot", "error", err)
	} else {
		b.username = me.Username
	}

	var offset int64
	if b.cfg.DropPending {
		bootstrapped, err := bootstrapOffset(ctx, b.commander, b.cfg.PendingWindowSeconds, b.cfg.PendingMaxMessages)
		if err != nil {
			b.logger.Warn("bootstrap offset error", "error", err)
		} else {
			offset = bootstrapped
		}
	}

	// in-flight turns finish on shutdown; the turn timeout still bounds them
	turnCtx := context.WithoutCancel(ctx)
	idle := time.Duration(b.cfg.SleepSeconds) * time.Second
	for ctx.Err() == nil {
		prevState := b.circuit.State()
		if !b.circuit.Allow(time.Now()) {
			sleepCtx(ctx, idle)
			continue
		}
		if prevState == control.CircuitOpen && b.circuit.State() == control.CircuitHalfOpen {
			b.logEvent(db.EventCircuitHalfOpen, map[string]any{"error_class": b.circuit.OpenedClass()})
		}

		updates, err := b.commander.GetUpdates(ctx, offset, b.cfg.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			b.logger.Warn("getUpdates error", "error", err)
			b.recordFailure(err)
			sleepCtx(ctx, idle)
			continue
		}
		if b.circuit.State() == control.CircuitHalfOpen {
			b.recordSuccess()
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			msg := update.Message
			if msg == nil || msg.Text == nil || *msg.Text == "" {
				continue
			}
			b.dispatcher.Submit(msg.SenderID(), func() {
				b.handleMessage(turnCtx, msg)
			})
		}
		if len(updates) == 0 {
			sleepCtx(ctx, idle)
		}
	}
}

func bootstrapOffset(ctx context.Context, commander cmdpkg.Commander, pendingWindowSeconds int64, pendingMaxMessages int) (int64, error) {
	updates, err := commander.GetUpdates(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	cutoff := time.Now().Unix() - pendingWindowSeconds

	var inWindow []cmdpkg.Update
	for _, u := range updates {
		if u.Message != nil && u.Message.Date >= cutoff {
			inWindow = append(inWindow, u)
		}
	}

	if len(inWindow) == 0 {
		return updates[len(updates)-1].UpdateID + 1, nil
	}

	if len(inWindow) > pendingMaxMessages {
		inWindow = inWindow[len(inWindow)-pendingMaxMessages:]
	}

	return inWindow[0].UpdateID, nil
}

func (b *bot) recordFailure(err error) {
	errClass := classifyError(err)
	if b.circuit.RecordFailure(errClass, time.Now()) {
		b.logger.Warn("circuit opened", "error_class", errClass)
		b.logEvent(db.EventCircuitOpened, map[string]any{
			"error_class":      errClass,
			"threshold":        b.circuit.Threshold,
			"cooldown_seconds": int(b.circuit.Cooldown.Seconds()),
		})
	}
}

func (b *bot) recordSuccess() {
	if prev := b.circuit.RecordSuccess(); prev != control.CircuitClosed {
		b.logger.Info("circuit closed")
		b.logEvent(db.EventCircuitClosed, map[string]any{"recovered": true})
	}
}

func (b *bot) logEvent(eventType string, payload map[string]any) {
	if _, err := db.LogEvent(b.db, b.parentID, eventType, payload); err != nil {
		b.logger.Warn("failed to log event", "event_type", eventType, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

const (
	classCommandSource = "command_source_api"
	classProvider      = "provider_api"
	classStore         = "store"
)

func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}
	switch {
	case errors.Is(err, session.ErrStoreUnavailable):
		return classStore
	case errors.Is(err, session.ErrCompletionFailed), errors.Is(err, session.ErrSummarizationFailed):
		return classProvider
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "telegram "), strings.Contains(msg, "commander"):
		return classCommandSource
	case strings.Contains(msg, "openai "), strings.Contains(msg, "provider"):
		return classProvider
	case strings.Contains(msg, "redis"), strings.Contains(msg, "sqlite"):
		return classStore
	default:
		return "unknown"
	}
}
