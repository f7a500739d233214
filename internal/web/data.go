package web

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pv-groupings/internal/compare"
	"github.com/pv-groupings/internal/db"
	"github.com/pv-groupings/internal/geometry"
	"github.com/pv-groupings/internal/registry"
	"github.com/pv-groupings/internal/review"
	"github.com/pv-groupings/internal/web/handlers"
)

// LoadData reads the files the review API serves.
func LoadData(cfg DataConfig, logger *slog.Logger) (*handlers.Data, error) {
	if logger == nil {
		logger = slog.Default()
	}
	members, err := geometry.ReadFile(cfg.GroupsFile, cfg.GroupColumn, cfg.MemberColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}

	var comparison []compare.MatchRecord
	if cfg.ComparisonFile != "" {
		comparison, err = compare.ReadFile(cfg.ComparisonFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load comparison: %w", err)
		}
	}

	var installations []registry.Installation
	if cfg.RegistryFile != "" {
		installations, err = registry.LoadFile(cfg.RegistryFile, registry.Options{
			HeaderRow: cfg.RegistryHeaderRow,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
	}

	data := handlers.NewData(members, comparison, installations)
	logger.Info("review data loaded",
		"groups", len(data.GroupIDs()),
		"members", len(members),
		"comparison_rows", len(comparison),
		"installations", len(installations))
	return data, nil
}

// OpenSink opens the configured results sink.
func OpenSink(ctx context.Context, cfg *Config) (review.Sink, error) {
	switch cfg.Results.Sink {
	case "", "csv":
		return review.NewCSVSink(cfg.Results.CSVPath)
	case "postgres":
		dsn := cfg.Database.URL
		if dsn == "" {
			dsn = db.DSNFromEnv()
		}
		conn, err := db.Open(ctx, dsn, cfg.Database.MaxConnections)
		if err != nil {
			return nil, err
		}
		sink, err := review.NewPostgresSink(ctx, conn.DB, cfg.Results.Table)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return sink, nil
	}
	return nil, fmt.Errorf("unknown results sink %q (want csv or postgres)", cfg.Results.Sink)
}
