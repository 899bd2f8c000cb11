package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"northstar/internal/archive"
	"northstar/internal/coherence"
	"northstar/internal/consent"
	"northstar/internal/ledger"
	"northstar/internal/platform/config"
	"northstar/internal/platform/httpserver"
	"northstar/internal/platform/logger"
	"northstar/internal/platform/metrics"
	platformredis "northstar/internal/platform/redis"
	"northstar/internal/sink"
	httptransport "northstar/internal/transport/http"
	"northstar/internal/witness"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	sinks, cleanup, err := buildSinks(ctx, cfg)
	if err != nil {
		log.Error("sink setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	dispatcher := sink.NewDispatcher(sinks,
		sink.WithBufferSize(cfg.SinkBuffer),
		sink.WithLogger(log),
		sink.WithMetrics(m),
	)

	phaseLedger := ledger.New(consent.NewGate(), coherence.NewAggregator(),
		ledger.WithLogger(log),
		ledger.WithMetrics(m),
		ledger.WithNotifier(dispatcher),
	)

	submitter := witness.NewService(phaseLedger,
		witness.WithLogger(log),
		witness.WithMetrics(m),
	)

	handler := httptransport.New(submitter, phaseLedger, log)
	router := httptransport.NewRouter(handler, log, registry)
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := dispatcher.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		log.Info("starting northstar", "addr", cfg.Addr, "sinks", len(sinks))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete", "dropped_entries", dispatcher.Dropped())
}

// buildSinks assembles the configured downstream destinations. Each sink is
// optional; an unset config section simply leaves it out.
func buildSinks(ctx context.Context, cfg config.Server) ([]sink.Sink, func(), error) {
	var sinks []sink.Sink
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.RegistryPath != "" {
		jsonl, err := sink.NewJSONL(cfg.RegistryPath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, jsonl)
		closers = append(closers, func() { _ = jsonl.Close() })
	}

	if cfg.Postgres.DSN != "" {
		store, err := archive.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, sink.NewArchive(store))
		closers = append(closers, func() { _ = store.Close() })
	}

	if cfg.Redis.URL != "" {
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, sink.NewStream(client, cfg.Redis.Stream, cfg.Redis.StreamMaxLen))
		closers = append(closers, func() { _ = client.Close() })
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := sink.NewKafka(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, kafka)
		closers = append(closers, kafka.Close)
	}

	return sinks, cleanup, nil
}
