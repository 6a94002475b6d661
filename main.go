package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/flowsmith/server/internal/agent/conversations"
	"github.com/flowsmith/server/internal/agent/llm"
	"github.com/flowsmith/server/internal/agent/model"
	"github.com/flowsmith/server/internal/agent/relay"
	"github.com/flowsmith/server/internal/agent/repo"
	"github.com/flowsmith/server/internal/api"
	"github.com/flowsmith/server/internal/core"
	"github.com/flowsmith/server/internal/flow"
	"github.com/flowsmith/server/internal/typebot"
	logx "github.com/flowsmith/server/pkg/logger"
	pkgredis "github.com/flowsmith/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the server,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Server
	Environment         string   `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel            string   `envconfig:"LOG_LEVEL"`
	Port                string   `envconfig:"PORT" default:"8080"`
	CORSAllowedOrigins  []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	MaxRequestBodyBytes int64    `envconfig:"MAX_REQUEST_BODY_BYTES" default:"1048576"`
	FlowGraphChecks     bool     `envconfig:"FLOW_GRAPH_CHECKS" default:"true"`

	// Infrastructure
	Redis pkgredis.Config

	// Collaborators
	Agent        model.AgentConfig
	Typebot      typebot.Config
	Conversation model.ConversationConfig
}

func main() {
	logx.Init()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, env); err != nil {
		logx.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, cfg AppConfig, env core.Environment) error {
	// Conversation history: Redis when configured, process memory otherwise.
	var (
		convRepo       model.ConversationRepository
		redisPing      api.Pinger
		historyBackend = "memory"
	)
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return err
		}
		defer rdb.Close()
		convRepo = repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL, cfg.Conversation.MaxMessages())
		redisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		historyBackend = "redis"
		logx.Info().Msg("Connected to Redis successfully")
	} else {
		convRepo = repo.NewMemoryConversationRepository(cfg.Conversation.TTL, cfg.Conversation.MaxMessages())
		logx.Warn().Msg("REDIS_URL not set; conversation history is kept in memory")
	}

	chatModel, err := llm.New(ctx, cfg.Agent)
	if err != nil {
		return err
	}
	modelName := llm.ModelName(cfg.Agent)
	rl, err := relay.New(ctx, relay.Config{
		ChatModel:   chatModel,
		ModelName:   modelName,
		WorkspaceID: cfg.Typebot.WorkspaceID,
	})
	if err != nil {
		return err
	}

	tb := typebot.NewClient(cfg.Typebot)
	if !tb.Configured() {
		logx.Warn().Msg("TYPEBOT_API_TOKEN not set; publishing is disabled")
	}

	pipeline := flow.NewPipeline(
		flow.WithGraphChecks(cfg.FlowGraphChecks),
		flow.WithMaxContentLen(int(cfg.MaxRequestBodyBytes)),
	)

	h := api.NewHandler(rl, tb, pipeline,
		conversations.NewMessagesManager(convRepo, cfg.Conversation),
		api.PublicConfig{
			Environment:    env.String(),
			Provider:       cfg.Agent.Provider,
			Model:          modelName,
			WorkspaceID:    cfg.Typebot.WorkspaceID,
			TypebotBaseURL: tb.BaseURL(),
			PublishEnabled: tb.Configured(),
			GraphChecks:    cfg.FlowGraphChecks,
			HistoryBackend: historyBackend,
		},
		redisPing,
	)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(h, api.RouterOptions{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			MaxBodyBytes:   cfg.MaxRequestBodyBytes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Agent calls can take longer than the read side.
		WriteTimeout: cfg.Agent.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().
			Str("addr", srv.Addr).
			Str("env", env.String()).
			Str("provider", cfg.Agent.Provider).
			Str("model", modelName).
			Str("agent_api_key", logx.Redact(cfg.Agent.APIKey)).
			Str("typebot_api_token", logx.Redact(cfg.Typebot.APIToken)).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server failure.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logx.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logx.Info().Msg("Server stopped successfully")
	return nil
}
