// Command recommend runs a single recommendation pass against the IHFS
// database and prints the recommended hazard events as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/river-flood-recommender/internal/adapter/ihfs"
	"github.com/couchcryptid/river-flood-recommender/internal/config"
	"github.com/couchcryptid/river-flood-recommender/internal/observability"
	"github.com/couchcryptid/river-flood-recommender/internal/recommender"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	confidence := flag.Int("confidence", -1, "forecast confidence percentage 0-100 (default from config)")
	includeNonFlood := flag.Bool("include-nonflood", false, "also include points with data but no flooding")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logging.Level, "text")

	store, err := ihfs.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open hydrologic database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	opts := recommender.RunOptions{
		ForecastConfidencePercentage: cfg.Site.ForecastConfidencePercentage,
		IncludeNonFloodPoints:        cfg.Site.IncludeNonFloodPoints || *includeNonFlood,
	}
	if *confidence >= 0 {
		opts.ForecastConfidencePercentage = *confidence
	}

	engine := recommender.New(store, clockwork.NewRealClock(), siteDefaults(cfg), logger, observability.NewMetrics())

	hazards, err := engine.Recommend(context.Background(), opts)
	if err != nil {
		logger.Error("recommendation run failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(hazards); err != nil {
		logger.Error("failed to encode hazards", "error", err)
		os.Exit(1)
	}
}

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
