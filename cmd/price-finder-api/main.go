package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/price-finder/internal/api"
	"github.com/Checker-Finance/price-finder/internal/catalog"
	"github.com/Checker-Finance/price-finder/internal/httpclient"
	"github.com/Checker-Finance/price-finder/internal/jobs"
	"github.com/Checker-Finance/price-finder/internal/publisher"
	"github.com/Checker-Finance/price-finder/internal/rate"
	internalsecrets "github.com/Checker-Finance/price-finder/internal/secrets"
	"github.com/Checker-Finance/price-finder/internal/store"
	"github.com/Checker-Finance/price-finder/pkg/cache"
	"github.com/Checker-Finance/price-finder/pkg/config"
	"github.com/Checker-Finance/price-finder/pkg/logger"
	"github.com/Checker-Finance/price-finder/pkg/model"
	"github.com/Checker-Finance/price-finder/pkg/secrets"
	"github.com/Checker-Finance/price-finder/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [price-finder-api]...")

	// --- Optional service secrets from AWS Secrets Manager ---
	if cfg.AWSSecretName != "" {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		resolver := internalsecrets.NewResolver(
			logger.Named("secrets"),
			cfg.Env,
			awsProvider,
			cache.New[internalsecrets.ServiceSecrets](cfg.SecretsTTL),
			internalsecrets.ParseServiceSecrets,
		)
		svcSecrets, err := resolver.Resolve(ctx, cfg.AWSSecretName)
		if err != nil {
			logg.Fatalw("failed to resolve service secrets", "secret", resolver.SecretName(cfg.AWSSecretName), "error", err)
		}
		svcSecrets.Apply(cfg)
	}
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- Store (Redis history + optional Postgres search log) ---
	st, err := store.NewHybrid(store.Options{
		RedisAddr: cfg.RedisAddr,
		RedisDB:   cfg.RedisDB,
		RedisPass: cfg.RedisPass,
		PGURL:     cfg.DatabaseURL,
		PGPool: store.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		},
		HistoryCapacity: cfg.HistoryCapacity,
		SessionTTL:      cfg.SessionTTL,
	}, logger.Named("store"))
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}
	if st.PG != nil {
		if err := st.EnsureSchema(ctx); err != nil {
			logg.Fatalw("failed to ensure search log schema", "error", err)
		}
	} else {
		logg.Warn("DATABASE_URL not configured; search log disabled")
	}

	// --- NATS publisher (optional) ---
	var nc *nats.Conn
	var pub *publisher.Publisher
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err = publisher.New(nc, cfg.SearchSubject, cfg.ServiceName)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
		if err := pub.EnsureStream(cfg.StreamName); err != nil {
			logg.Warnw("failed to ensure stream", "stream", cfg.StreamName, "error", err)
		}
	} else {
		logg.Warn("NATS_URL not configured; search events disabled")
	}

	// --- Catalog (rate limited, cached) ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: float64(cfg.CatalogRPS),
		Burst:             cfg.CatalogBurst,
	})
	exec := httpclient.New(
		logger.Named("catalog"),
		rateMgr,
		&http.Client{Timeout: cfg.CatalogTimeout},
		cfg.CatalogRetryMax,
		"catalog",
	)

	stopCleaner := make(chan struct{})
	rateCache := cache.New[decimal.Decimal](cfg.ExchangeRateTTL)
	productCache := cache.New[model.Product](cfg.CatalogCacheTTL)
	go rateCache.StartCleaner(cfg.CacheCleanupFreq, stopCleaner)
	go productCache.StartCleaner(cfg.CacheCleanupFreq, stopCleaner)

	rates := catalog.NewQuotePageRates(logger.Named("rates"), exec, cfg.ExchangeRateURL, rateCache)
	lookup := catalog.NewCachedLookup(
		logger.Named("catalog"),
		catalog.NewClient(logger.Named("catalog"), exec, cfg.CatalogBaseURL, rates),
		productCache,
	)

	// --- Search log pruner ---
	var pruner *jobs.SearchLogPruner
	if st.PG != nil {
		var events jobs.EventPublisher
		if pub != nil {
			events = pub
		}
		pruner = jobs.NewSearchLogPruner(logger.Named("jobs"), st.PG, events, cfg.SearchLogRetention, cfg.PruneInterval)
		go pruner.Start(ctx)
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.HTTPReadTimeout,
		WriteTimeout:          cfg.HTTPWriteTimeout,
		IdleTimeout:           cfg.HTTPIdleTimeout,
		BodyLimit:             cfg.HTTPBodyLimit,
		DisableStartupMessage: cfg.Env != "dev",
	})

	var searchEvents api.SearchEvents
	if pub != nil {
		searchEvents = pub
	}
	handler := api.NewHandler(logger.Named("api"), lookup, st, searchEvents)
	api.RegisterRoutes(app, nc, st, handler, api.SessionConfig{
		CookieName: cfg.SessionCookie,
		Secure:     cfg.CookieSecure,
		TTL:        cfg.SessionTTL,
	}, cfg.ServiceName)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[price-finder-api] running",
		"env", cfg.Env,
		"catalog", cfg.CatalogBaseURL,
		"history_capacity", cfg.HistoryCapacity,
		"search_log", st.PG != nil,
		"events", nc != nil)

	<-ctx.Done()
	logg.Info("shutting down [price-finder-api]...")

	close(stopCleaner)
	if pruner != nil {
		pruner.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
