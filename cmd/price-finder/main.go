package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/apiclient"
	"github.com/Checker-Finance/price-finder/internal/catalog"
	"github.com/Checker-Finance/price-finder/internal/history"
	"github.com/Checker-Finance/price-finder/internal/httpclient"
	"github.com/Checker-Finance/price-finder/internal/rate"
	"github.com/Checker-Finance/price-finder/internal/render"
	"github.com/Checker-Finance/price-finder/internal/search"
	"github.com/Checker-Finance/price-finder/internal/slot"
	"github.com/Checker-Finance/price-finder/pkg/cache"
	"github.com/Checker-Finance/price-finder/pkg/config"
	"github.com/Checker-Finance/price-finder/pkg/logger"
	"github.com/Checker-Finance/price-finder/pkg/model"
	"github.com/Checker-Finance/price-finder/pkg/utils"
)

func main() {
	configPath := flag.String("config", "price-finder.toml", "path to the client TOML config")
	mode := flag.String("mode", "", "history mode: local or remote (overrides config)")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err == nil && *mode != "" {
		cfg.Mode = *mode
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "price-finder:", err)
		os.Exit(2)
	}

	logger.Init("price-finder", cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		logger.S().Errorw("price-finder.failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ClientConfig, in io.Reader, out io.Writer) error {
	log := logger.L()

	var (
		lookup search.Lookup
		store  history.Store
	)
	switch cfg.Mode {
	case config.ModeRemote:
		client, err := apiclient.New(logger.Named("apiclient"), apiclient.Options{
			BaseURL:      cfg.Remote.BaseURL,
			SessionToken: cfg.Remote.SessionToken,
			Timeout:      cfg.Remote.Timeout.Duration,
			RetryMax:     cfg.Remote.RetryMax,
		})
		if err != nil {
			return err
		}
		log.Info("client.remote_mode",
			zap.String("api", cfg.Remote.BaseURL),
			zap.String("session", utils.MaskToken(cfg.Remote.SessionToken)))
		lookup = client
		store = history.NewRemote(logger.Named("history"), client, history.DefaultCapacity)

	default:
		db, err := slot.OpenSQLite(ctx, cfg.Local.Path, logger.Named("slot"))
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		log.Info("client.local_mode", zap.String("path", cfg.Local.Path), zap.String("slot", cfg.Local.SlotName))
		lookup = newCatalogLookup(cfg.Catalog)
		store = history.NewLocal(logger.Named("history"), db, cfg.Local.SlotName, history.DefaultCapacity)
	}

	if err := store.Restore(ctx); err != nil {
		render.Warn(out, "Could not restore history: %v", err)
	}

	ctrl := search.NewController(logger.Named("search"), lookup, store, search.WithSource("cli"))
	defer ctrl.Close()

	return newREPL(ctrl, store, in, out).run(ctx)
}

// newCatalogLookup wires direct catalog access for local mode.
func newCatalogLookup(cc config.CatalogConfig) *catalog.CachedLookup {
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: float64(cc.RequestsPerSec),
		Burst:             max(cc.RequestsPerSec, 1),
	})
	exec := httpclient.New(
		logger.Named("catalog"),
		rateMgr,
		&http.Client{Timeout: cc.Timeout.Duration},
		cc.RetryMax,
		"catalog",
	)
	rates := catalog.NewQuotePageRates(logger.Named("rates"), exec, cc.ExchangeRateURL,
		cache.New[decimal.Decimal](30*time.Minute))
	return catalog.NewCachedLookup(
		logger.Named("catalog"),
		catalog.NewClient(logger.Named("catalog"), exec, cc.BaseURL, rates),
		cache.New[model.Product](time.Hour),
	)
}
