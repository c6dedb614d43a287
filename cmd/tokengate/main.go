package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/tokengate/adapters/agent"
	"github.com/layer-3/tokengate/adapters/events"
	"github.com/layer-3/tokengate/adapters/ledger"
	"github.com/layer-3/tokengate/adapters/store"
	"github.com/layer-3/tokengate/adapters/tokenizer"
	"github.com/layer-3/tokengate/adapters/verifier"
	"github.com/layer-3/tokengate/internal/config"
	"github.com/layer-3/tokengate/ports"
	"github.com/layer-3/tokengate/service"
	"github.com/layer-3/tokengate/transport/http"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("tokengate stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Access.Mint == "" {
		logger.Warn("TOKEN_MINT is not set, gated endpoints will fail")
	}

	signKey, err := signingKey(cfg, logger)
	if err != nil {
		return err
	}

	oracle, err := ledger.NewSolanaOracle(ctx, cfg.Ledger.RPCURL,
		ledger.WithCommitment(cfg.Ledger.Commitment),
		ledger.WithTimeout(cfg.Ledger.Timeout),
		ledger.WithRetries(cfg.Ledger.Retries, ledger.DefaultBackoff),
		ledger.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer oracle.Close()

	nonceStore, err := newNonceStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	eventPub, closeEvents, err := newEventPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	authService := service.NewAuthService(
		nonceStore,
		verifier.NewEd25519Verifier(),
		oracle,
		tokenizer.NewJWTTokenizer(signKey, cfg.Session.Issuer),
		eventPub,
		service.Config{
			Mint:       cfg.Access.Mint,
			Threshold:  cfg.Access.Threshold,
			SessionTTL: cfg.Session.TTL,
			Logger:     logger,
		},
	)

	chatService := service.NewChatService(newChatAgent(cfg, logger), logger)

	// Setup Gin router
	srv := &nethttp.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           http.SetupRouter(authService, chatService, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.App.HTTPAddr, "env", cfg.App.Env, "rpc", oracle.Endpoint())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.App.LogLevel))

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// signingKey falls back to a throwaway key outside production; sessions then die with the process
func signingKey(cfg *config.Config, logger *slog.Logger) (*ecdsa.PrivateKey, error) {
	if cfg.Session.SigningKey != "" {
		return cfg.SigningKey()
	}

	logger.Warn("SESSION_SIGNING_KEY is not set, using an ephemeral key")
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return key, nil
}

func newChatAgent(cfg *config.Config, logger *slog.Logger) ports.ChatAgent {
	if cfg.Agent.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, the chat endpoint will fail")
		return nil
	}

	opts := []agent.Option{agent.WithModel(cfg.Agent.Model)}
	if cfg.Agent.BaseURL != "" {
		opts = append(opts, agent.WithBaseURL(cfg.Agent.BaseURL))
	}
	return agent.NewOpenAIAgent(cfg.Agent.APIKey, opts...)
}

func newRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func newNonceStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.NonceStore, error) {
	opts := []store.Option{
		store.WithTTL(cfg.Nonce.TTL),
		store.WithGrace(cfg.Nonce.TTL),
		store.WithLogger(logger),
	}

	if cfg.Nonce.Store != config.StoreRedis {
		return store.NewMemoryStore(ctx, opts...), nil
	}

	client, err := newRedisClient(cfg.Nonce.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach Redis: %w", err)
	}
	return store.NewRedisStore(client, opts...), nil
}

func newEventPublisher(cfg *config.Config, logger *slog.Logger) (ports.EventPublisher, func(), error) {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}, func() {}, nil
	}

	client, err := newRedisClient(cfg.Events.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	// Initialize Watermill Redis publisher
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}

	closeFn := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close event publisher", "error", err)
		}
	}
	return events.NewWatermillPublisher(publisher), closeFn, nil
}
