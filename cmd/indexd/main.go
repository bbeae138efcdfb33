// Command indexd keeps a textindex in memory, restores it from the snapshot
// store at startup, applies document events from Kafka, serves the search
// API and flushes snapshots periodically and on shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/consumer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/store"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textindex/pkg/redis"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("indexd failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
	slog.Info("indexd stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	idx, err := textindex.FromConfig(cfg).Metrics(m).Build()
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	slog.Info("starting indexd",
		"fields", idx.Fields(),
		"pipeline", idx.Export().Pipeline,
		"snapshot_driver", cfg.Snapshot.Driver,
	)

	snapStore, err := snapshot.Open(cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer snapStore.Close()
	flusher := snapshot.NewFlusher(snapStore, idx.Engine(), m)
	if _, err := flusher.Restore(ctx); err != nil {
		return fmt.Errorf("restoring snapshot: %w", err)
	}

	checker := health.NewChecker()
	checker.Register("index", func(context.Context) health.ComponentHealth {
		s := idx.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", s.DocCount, s.TermCount),
		}
	})
	if sq, ok := snapStore.(*snapshot.SQLiteStore); ok {
		checker.Register("snapshot_db", health.Ping(sq.Ping, false))
	}

	var docs *store.Store
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		docs = store.New(pg)
		if err := docs.EnsureSchema(ctx); err != nil {
			return err
		}
		checker.Register("postgres", health.Ping(pg.Ping, false))
		slog.Info("document status tracking enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.Ping(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	mux := http.NewServeMux()
	handler.New(idx.Engine(), idx.Executor(), queryCache, cfg.Query.DefaultLimit, cfg.Query.MaxResults).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var wg sync.WaitGroup
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.DocumentEvents
		var statuses consumer.StatusUpdater
		var stager publisher.Stager
		if docs != nil {
			statuses, stager = docs, docs
		}
		indexConsumer := consumer.New(kafka.NewConsumer(cfg.Kafka, topic, consumer.HandleMessage(idx.Engine(), statuses, m)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := indexConsumer.Start(ctx); err != nil {
				slog.Error("index consumer stopped", "error", err)
			}
		}()
		defer indexConsumer.Close()

		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		ingesthandler.New(publisher.New(producer, stager)).Register(mux)
		slog.Info("consuming document events", "topic", topic, "group", cfg.Kafka.ConsumerGroup)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		flusher.Run(ctx, cfg.Snapshot.Interval)
	}()

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port, m, nil)
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Timeout(cfg.Server.WriteTimeout),
			middleware.Metrics(m),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("search API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("search API: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if shutdownMetrics != nil {
		_ = shutdownMetrics(shutdownCtx)
	}
	wg.Wait()
	return nil
}
