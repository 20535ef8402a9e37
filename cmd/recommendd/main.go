// Command recommendd runs the flood recommendation engine as a service: a
// periodic recommendation loop over the IHFS database, operational HTTP
// endpoints, and optional publication of the recommended hazards to Kafka.
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

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/river-flood-recommender/internal/adapter/http"
	"github.com/couchcryptid/river-flood-recommender/internal/adapter/ihfs"
	kafkaadapter "github.com/couchcryptid/river-flood-recommender/internal/adapter/kafka"
	"github.com/couchcryptid/river-flood-recommender/internal/config"
	"github.com/couchcryptid/river-flood-recommender/internal/observability"
	"github.com/couchcryptid/river-flood-recommender/internal/recommender"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	metrics := observability.NewMetrics()

	store, err := ihfs.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open hydrologic database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.InitSchema(context.Background()); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	engine := recommender.New(store, clockwork.NewRealClock(), siteDefaults(cfg), logger, metrics)
	opts := recommender.RunOptions{
		ForecastConfidencePercentage: cfg.Site.ForecastConfidencePercentage,
		IncludeNonFloodPoints:        cfg.Site.IncludeNonFloodPoints,
	}

	var publisher *kafkaadapter.Writer
	if cfg.Kafka.Enabled {
		publisher = kafkaadapter.NewWriter(cfg, logger)
		logger.Info("hazard publication enabled", "topic", cfg.Kafka.Topic)
	} else {
		logger.Info("hazard publication disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTP.Addr, engine, engine, opts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go runLoop(ctx, engine, publisher, opts, cfg.Run.Interval, metrics, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// runLoop executes one recommendation pass immediately and then on every
// interval tick until the context is cancelled.
func runLoop(ctx context.Context, engine *recommender.Engine, publisher *kafkaadapter.Writer, opts recommender.RunOptions, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		runOnce(ctx, engine, publisher, opts, metrics, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runOnce(ctx context.Context, engine *recommender.Engine, publisher *kafkaadapter.Writer, opts recommender.RunOptions, metrics *observability.Metrics, logger *slog.Logger) {
	hazards, err := engine.Recommend(ctx, opts)
	if err != nil {
		logger.Error("recommendation run failed", "error", err)
		return
	}
	if publisher == nil || len(hazards) == 0 {
		return
	}
	if err := publisher.PublishHazards(ctx, hazards); err != nil {
		logger.Error("hazard publication failed", "error", err)
		return
	}
	metrics.HazardsPublished.Add(float64(len(hazards)))
}

// siteDefaults maps the configured site settings onto the engine's fallback
// defaults, used when the database carries no rpfparams row.
func siteDefaults(cfg *config.Config) recommender.SiteSettings {
	return recommender.SiteSettings{
		LookbackHours:         cfg.Site.LookbackHours,
		LookforwardHours:      cfg.Site.LookforwardHours,
		BasisHours:            cfg.Site.BasisHours,
		ShiftHours:            cfg.Site.ShiftHours,
		StageWindow:           cfg.Site.StageWindow,
		VTECRecordStageOffset: cfg.Site.VTECRecordStageOffset,
		VTECRecordFlowOffset:  cfg.Site.VTECRecordFlowOffset,
		FLWExpirationHours:    cfg.Site.FLWExpirationHours,
	}
}
