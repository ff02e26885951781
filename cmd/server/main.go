package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chaobytes/chaogpt/internal/ai"
	"github.com/chaobytes/chaogpt/internal/chat"
	"github.com/chaobytes/chaogpt/internal/config"
	"github.com/chaobytes/chaogpt/internal/conversation"
	"github.com/chaobytes/chaogpt/internal/events"
	"github.com/chaobytes/chaogpt/internal/httpapi"
	"github.com/chaobytes/chaogpt/internal/httpapi/handlers"
	"github.com/chaobytes/chaogpt/internal/logger"
	"github.com/chaobytes/chaogpt/internal/personality"
	"github.com/chaobytes/chaogpt/internal/ratelimit"
	"github.com/chaobytes/chaogpt/internal/stream"
)

func main() {
	log := logger.New("chaogpt")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sampler := personality.NewDefaultSampler()

	// Conversation store: in-memory unless a DSN is configured.
	var store conversation.Store
	var memStore *conversation.MemoryStore
	if cfg.DBDSN != "" {
		db, err := conversation.OpenDB(cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("database open failed")
		}
		store = conversation.NewGormStore(db, cfg.MessageCap, sampler)
		log.Info().Msg("using durable conversation store")
	} else {
		memStore = conversation.NewMemoryStore(cfg.MessageCap, sampler)
		store = memStore
	}

	// Session limiter: in-memory unless Redis is configured.
	limiterCfg := ratelimit.Config{
		Capacity:       cfg.RateLimit,
		Window:         cfg.RateWindow,
		ChaosThreshold: cfg.ChaosThreshold,
		MaxViolations:  cfg.MaxViolations,
	}
	var limiter ratelimit.SessionLimiter
	var memLimiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis ping failed")
		}
		limiter = ratelimit.NewRedis(rdb, limiterCfg)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis session limiter")
	} else {
		memLimiter = ratelimit.New(limiterCfg)
		limiter = memLimiter
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitURL != "" {
		p, err := events.NewRabbit(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbitmq connect failed")
		}
		defer p.Close()
		publisher = p
		log.Info().Str("queue", cfg.RabbitQueue).Msg("publishing lifecycle events")
	}

	client := ai.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, ai.Params{
		Model:            cfg.Model,
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
		PresencePenalty:  cfg.PresencePenalty,
		FrequencyPenalty: cfg.FrequencyPenalty,
	}, cfg.UpstreamAttempts, cfg.UpstreamBackoff, log)

	svc := chat.NewService(store, limiter, client, stream.NewTransformer(sampler), sampler, publisher, chat.Options{
		MaxMessageLen: cfg.MaxMessageLen,
		ContextWindow: cfg.ContextWindow,
	}, log)

	if memLimiter != nil {
		go memLimiter.RunSweeper(ctx, cfg.SessionSweep)
	}
	if memStore != nil {
		go memStore.RunSweeper(ctx, cfg.StoreSweep, cfg.ConversationTTL)
	}

	h := handlers.NewHandler(store, svc, client, sampler, publisher, log)
	router := httpapi.NewRouter(h, cfg.CORSOrigins, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown did not finish cleanly")
	}
}
