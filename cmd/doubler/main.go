// Command doubler runs the Sender/Doubler example on a chosen backend.
//
// Configuration comes from the environment:
//
//	BACKEND=memory|sqlite|nats   (default memory)
//	SQLITE_PATH=pactor.db
//	NATS_URL=nats://127.0.0.1:4222
//	NATS_BUCKET=pactor_storage
//	NATS_STREAM=PACTOR_LOG
//	LOG_LEVEL=debug|info|warn|error
//	METRICS_ADDR=:2121           (Prometheus metrics, off when empty)
//	START=4                      (initial Sender value)
//	SERVE=true                   (keep serving after the first run)
//
// NOTE: run nats: docker run --net=host nats:latest -js
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	promadapter "github.com/codewandler/pactor/adapters/prometheus"
	"github.com/codewandler/pactor/core/runtime"
	"github.com/codewandler/pactor/examples/doubler"
	"github.com/codewandler/pactor/internal/backend"
	"github.com/codewandler/pactor/ports/kv"
)

type config struct {
	backend.Config
	LogLevel     slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr  string        `env:"METRICS_ADDR"`
	Start        int           `env:"START" envDefault:"4"`
	Serve        bool          `env:"SERVE" envDefault:"false"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("doubler failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	be, err := backend.Open(ctx, cfg.Config, log)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	defer be.Close()

	reg := prometheus.NewRegistry()
	rt := runtime.New(runtime.Options{
		Store:        be.Store,
		Logger:       log,
		Metrics:      promadapter.NewMetrics(reg),
		PollInterval: cfg.PollInterval,
	})
	defer rt.Close()
	doubler.Register(rt)

	sender := &doubler.Sender{Start: cfg.Start}
	sid := runtime.AddActor(rt, sender, be.Log)
	sender.Doubler = runtime.AddActor(rt, &doubler.Doubler{}, be.Log)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("serving metrics", slog.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		startAt := time.Now()
		if err := rt.Run(ctx); err != nil {
			return err
		}

		v, err := kv.Get[int](ctx, be.Store, doubler.ValueKey(sid.Any()))
		if err != nil {
			return err
		}
		log.Info("run finished",
			slog.String("backend", cfg.Backend),
			slog.Int("value", v),
			slog.Duration("duration", time.Since(startAt)),
		)

		if err := rt.Compact(ctx); err != nil {
			return err
		}
		if cfg.Serve {
			return rt.Serve(ctx)
		}
		return nil
	})

	return g.Wait()
}
