// Package main runs the long-lived autobuy watcher: it streams offer
// batches from the feed, merges them into the known set, runs the purchase
// orchestrator on new offers and retries deferred purchases when their
// locks expire.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"giftbuyer/internal/config"
	"giftbuyer/internal/feed"
	"giftbuyer/internal/giftapi"
	"giftbuyer/internal/logging"
	"giftbuyer/internal/notify"
	"giftbuyer/internal/observability"
	"giftbuyer/internal/offers"
	"giftbuyer/internal/orchestrator"
	"giftbuyer/internal/resilience"
	"giftbuyer/internal/scheduler"
	"giftbuyer/internal/stats"
	"giftbuyer/internal/storage"
	chstore "giftbuyer/internal/storage/clickhouse"
	"giftbuyer/internal/storage/memory"
	"giftbuyer/internal/storage/migrations"
	pgstore "giftbuyer/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn("second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	metrics := observability.Default()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	if err := run(ctx, cfg, logger, metrics); err != nil && err != context.Canceled {
		logger.Fatal("watcher failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) error {
	// Stores: postgres when configured, memory otherwise.
	var (
		accountStore     storage.AccountStore     = memory.NewAccountStore()
		destinationStore storage.DestinationStore = memory.NewDestinationStore()
		settingsStore    storage.SettingsStore    = memory.NewSettingsStore()
	)
	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool.Pool); err != nil {
			return err
		}
		accountStore = pgstore.NewAccountStore(pool)
		destinationStore = pgstore.NewDestinationStore(pool)
		settingsStore = pgstore.NewSettingsStore(pool)
		logger.Info("using postgres stores")
	} else {
		logger.Warn("POSTGRES_DSN not set, using in-memory stores")
	}

	var eventStore storage.PurchaseEventStore
	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		eventStore = chstore.NewPurchaseEventStore(conn)
		logger.Info("purchase auditing enabled")
	}

	port := resilience.New(resilience.Options{
		Port: giftapi.New(giftapi.Options{
			BaseURL: cfg.GiftAPIURL,
			Timeout: cfg.RequestTimeout,
			Logger:  logger,
			Metrics: metrics,
		}),
		Logger: logger,
	})

	notifier := notify.New(notify.Options{
		BaseURL: cfg.NotifyAPIURL,
		Logger:  logger,
	})

	orch := orchestrator.New(orchestrator.Options{
		AccountStore:     accountStore,
		DestinationStore: destinationStore,
		SettingsStore:    settingsStore,
		EventStore:       eventStore,
		Purchase:         port,
		Notifier:         notifier,
		Metrics:          metrics,
		AllowUnlimited:   cfg.AllowUnlimited,
		Logger:           logger,
	})

	watcher := &watcher{
		userID:  cfg.UserID,
		orch:    orch,
		logger:  logger,
		metrics: metrics,
	}

	retry := scheduler.New(scheduler.Options{Run: watcher.runDeferred, Logger: logger})
	watcher.retry = retry
	retry.Start(ctx)
	defer retry.Wait()

	source, err := feed.NewSource(feed.Options{
		Endpoint: cfg.FeedURL,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}
	defer source.Close()

	go func() {
		<-ctx.Done()
		source.Close()
	}()

	logger.Info("watching offer feed", zap.String("endpoint", cfg.FeedURL), zap.Int64("user_id", cfg.UserID))
	for batch := range source.Batches() {
		watcher.handleBatch(ctx, batch)
	}
	return ctx.Err()
}

// watcher holds the merged offer cache shared between the feed loop and the
// deferred-run scheduler.
type watcher struct {
	userID  int64
	orch    *orchestrator.Orchestrator
	retry   *scheduler.Scheduler
	logger  *zap.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	known    []offers.RawOffer
	lastHash string
}

// handleBatch merges one feed message and runs the orchestrator on offers
// not seen before.
func (w *watcher) handleBatch(ctx context.Context, batch feed.Batch) {
	w.mu.Lock()
	merged := feed.MergeNew(w.known, batch.Items)
	added := feed.Added(w.known, merged)
	hash := feed.Hash(merged)
	changed := hash != w.lastHash
	w.known = merged
	w.lastHash = hash
	w.mu.Unlock()

	w.logger.Info("feed batch merged",
		zap.Int("incoming", len(batch.Items)),
		zap.Int("total", len(merged)),
		zap.Int("new", len(added)),
		zap.Bool("changed", changed))

	if !changed || len(added) == 0 {
		return
	}
	w.metrics.NewOffersSeen.Add(float64(len(added)))
	w.runOffers(ctx, added)
}

// runDeferred re-runs the offers whose account locks have expired.
func (w *watcher) runDeferred(ctx context.Context, due []stats.DeferredEntry) {
	w.mu.Lock()
	byID := make(map[int64]offers.RawOffer, len(w.known))
	for _, item := range w.known {
		byID[item.ID()] = item
	}
	w.mu.Unlock()

	seen := make(map[int64]struct{}, len(due))
	var batch []offers.RawOffer
	for _, e := range due {
		if _, ok := seen[e.OfferID]; ok {
			continue
		}
		seen[e.OfferID] = struct{}{}
		if item, ok := byID[e.OfferID]; ok {
			batch = append(batch, item)
		}
	}
	if len(batch) == 0 {
		return
	}
	w.logger.Info("retrying deferred offers", zap.Int("count", len(batch)))
	w.runOffers(ctx, batch)
}

func (w *watcher) runOffers(ctx context.Context, raw []offers.RawOffer) {
	outcome, err := w.orch.Run(ctx, orchestrator.Input{UserID: w.userID, Offers: raw})
	if err != nil {
		w.logger.Error("autobuy run failed", zap.Error(err))
		return
	}
	w.logger.Info("autobuy run finished",
		zap.String("run_id", outcome.RunID),
		zap.Int("purchased", len(outcome.Purchased)),
		zap.Int("skipped", outcome.SkippedCount),
		zap.Int("deferred", len(outcome.Deferred)))
	if len(outcome.Deferred) > 0 {
		w.retry.Schedule(outcome.Deferred)
	}
}
