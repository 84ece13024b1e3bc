package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/plandag/internal/api"
	"github.com/dgallion1/plandag/internal/config"
	"github.com/dgallion1/plandag/internal/logging"
	"github.com/dgallion1/plandag/internal/pipeline"
	"github.com/dgallion1/plandag/internal/render"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "config file (.yaml or .json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// serve runs the API until ctx is cancelled, then drains HTTP before
// stopping the workers.
func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var publisher pipeline.Publisher
	if cfg.RendererURL != "" {
		renderer := render.NewClient(cfg.RendererURL, cfg.RendererAPIKey)
		defer renderer.Close()
		publisher = renderer
		log.Info("publishing graphs", "renderer_url", cfg.RendererURL)
	}

	orch := pipeline.NewOrchestrator(cfg, publisher, log)
	orch.Start(ctx)
	defer orch.Stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(orch, log, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting plandag", "port", cfg.Port, "workers", cfg.WorkerCount)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
