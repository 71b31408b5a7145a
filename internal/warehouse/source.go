// Package warehouse reads stations and trips from the configured data store.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/pkg/config"
	"go.uber.org/zap"
)

// ErrQuery is wrapped by every failure to read from the warehouse.
var ErrQuery = errors.New("warehouse query failed")

// Source is the minimal read interface every backend provides.
type Source interface {
	Stations(ctx context.Context) ([]analytics.Station, error)
	// Trips returns every trip that starts or ends inside w.
	Trips(ctx context.Context, w analytics.Window) ([]analytics.Trip, error)
	Ping(ctx context.Context) error
	Close() error
}

// Aggregator is implemented by backends that can compute the per-hour and
// per-station counts themselves instead of returning raw trips.
type Aggregator interface {
	HourlySlots(ctx context.Context, w analytics.Window) ([]analytics.HourlyStationSlot, error)
	// StationFlows returns per-station flows for trips starting in w, and the
	// total number of such trips.
	StationFlows(ctx context.Context, w analytics.Window) ([]analytics.StationFlow, int, error)
	NetworkArrivals(ctx context.Context, w analytics.Window) ([]analytics.HourlyArrivals, error)
}

// rawSource hides a backend's Aggregator methods when push-down is disabled.
type rawSource struct {
	Source
}

// New opens the backend named by cfg.
func New(ctx context.Context, cfg config.WarehouseData, logger *zap.SugaredLogger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var (
		src Source
		err error
	)

	switch cfg.Backend {
	case "postgres":
		src, err = NewPostgresSource(cfg.ConnectionString, logger)
	case "sqlite":
		src, err = NewSQLiteSource(cfg.SQLitePath, logger)
	case "memory":
		src, err = loadMemorySource(cfg.StationsCSV, cfg.TripsCSV, logger)
	default:
		return nil, fmt.Errorf("unknown warehouse backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := src.Ping(ctx); err != nil {
		src.Close()
		return nil, err
	}

	if _, ok := src.(Aggregator); ok && !cfg.PushDown {
		logger.Infof("warehouse %s supports push-down aggregation but it is disabled", cfg.Backend)
		return rawSource{src}, nil
	}
	return src, nil
}

func loadMemorySource(stationsPath, tripsPath string, logger *zap.SugaredLogger) (*MemorySource, error) {
	sf, err := os.Open(stationsPath)
	if err != nil {
		return nil, fmt.Errorf("error opening stations export: %w", err)
	}
	defer sf.Close()
	stations, err := ReadStationsCSV(sf)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", stationsPath, err)
	}

	tf, err := os.Open(tripsPath)
	if err != nil {
		return nil, fmt.Errorf("error opening trips export: %w", err)
	}
	defer tf.Close()
	tr, err := NewTripReader(tf)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", tripsPath, err)
	}
	trips, err := tr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", tripsPath, err)
	}

	logger.Infow("loaded warehouse into memory",
		"stations", len(stations),
		"trips", len(trips),
		"skipped_rows", tr.Skipped())
	return NewMemorySource(stations, trips), nil
}

func queryError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrQuery, what, err)
}
