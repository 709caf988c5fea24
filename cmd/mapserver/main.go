package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/insurance-maps/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/insurance-maps/internal/adapter/kafka"
	"github.com/couchcryptid/insurance-maps/internal/catalog"
	"github.com/couchcryptid/insurance-maps/internal/config"
	"github.com/couchcryptid/insurance-maps/internal/ingest"
	"github.com/couchcryptid/insurance-maps/internal/observability"
	"github.com/couchcryptid/insurance-maps/internal/render"
	"github.com/couchcryptid/insurance-maps/internal/storage"
	"github.com/couchcryptid/insurance-maps/internal/svgmap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("mapserver failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	st, closeStore, err := storage.Open(ctx, cfg.DatabaseURL, cfg.DataFile, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	svg, err := svgmap.Load(cfg.SVGPath)
	if err != nil {
		return fmt.Errorf("loading map svg: %w", err)
	}
	logger.Info("map substrate loaded", "path", cfg.SVGPath, "states", len(svg.States()))

	pages, err := render.New(svg, cat, cfg.PageCacheSize, metrics)
	if err != nil {
		return err
	}

	// Event publishing is feature-flagged via KAFKA_BROKERS.
	var publisher ingest.Publisher
	if cfg.KafkaEnabled() {
		pub := kafkaadapter.NewPublisher(cfg, logger, metrics)
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = pub
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	importer := ingest.New(st, publisher, logger, metrics)
	importer.OnChange(pages.Invalidate)

	seeded, err := importer.Seed(ctx, cfg.SeedDir)
	if err != nil {
		return fmt.Errorf("seeding datasets: %w", err)
	}
	if len(seeded) > 0 {
		logger.Info("seeded datasets", "dir", cfg.SeedDir, "trades", seeded)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, importer, st, pages, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
