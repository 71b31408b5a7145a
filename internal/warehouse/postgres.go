package warehouse

import (
	"context"
	"fmt"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgresSource reads the cycle_hire and cycle_stations tables through gorm.
type PostgresSource struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewPostgresSource connects to the warehouse at dsn.
func NewPostgresSource(dsn string, logger *zap.SugaredLogger) (*PostgresSource, error) {
	db, err := database.CreateConnection(dsn)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PostgresSource{db: db, logger: logger}, nil
}

func (p *PostgresSource) Stations(ctx context.Context) ([]analytics.Station, error) {
	var rows []database.CycleStation
	if err := p.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, queryError("loading stations", err)
	}
	stations := make([]analytics.Station, len(rows))
	for i, r := range rows {
		stations[i] = r.Station()
	}
	return stations, nil
}

func (p *PostgresSource) Trips(ctx context.Context, w analytics.Window) ([]analytics.Trip, error) {
	var rows []database.CycleHire
	err := p.db.WithContext(ctx).
		Where("(start_date >= ? AND start_date < ?) OR (end_date >= ? AND end_date < ?)", w.From, w.To, w.From, w.To).
		Order("rental_id").
		Find(&rows).Error
	if err != nil {
		return nil, queryError("loading trips", err)
	}
	trips := make([]analytics.Trip, len(rows))
	for i, r := range rows {
		trips[i] = r.Trip()
	}
	p.logger.Debugf("loaded %d trips between %s and %s", len(trips), w.From.Format("2006-01-02"), w.To.Format("2006-01-02"))
	return trips, nil
}

func (p *PostgresSource) HourlySlots(ctx context.Context, w analytics.Window) ([]analytics.HourlyStationSlot, error) {
	var rows []database.HourlyArrivalRow
	if err := p.db.WithContext(ctx).Raw(hourlySlotsSQL, w.From, w.To).Scan(&rows).Error; err != nil {
		return nil, queryError("aggregating hourly arrivals", err)
	}
	slots := make([]analytics.HourlyStationSlot, len(rows))
	for i, r := range rows {
		st := analytics.Station{ID: r.StationID, Name: r.StationName, DockCount: r.DocksCount}
		slots[i] = analytics.NewSlot(st, r.Day, r.Hour, r.Arrivals)
	}
	analytics.SortSlots(slots)
	return slots, nil
}

func (p *PostgresSource) StationFlows(ctx context.Context, w analytics.Window) ([]analytics.StationFlow, int, error) {
	var rows []database.StationFlowRow
	if err := p.db.WithContext(ctx).Raw(stationFlowsSQL, w.From, w.To).Scan(&rows).Error; err != nil {
		return nil, 0, queryError("aggregating station flows", err)
	}
	var total int64
	if err := p.db.WithContext(ctx).Raw(windowTripCountSQL, w.From, w.To).Scan(&total).Error; err != nil {
		return nil, 0, queryError("counting trips", err)
	}

	flows := make([]analytics.StationFlow, len(rows))
	for i, r := range rows {
		st := analytics.Station{ID: r.StationID, Name: r.StationName, DockCount: r.DocksCount}
		flows[i] = analytics.NewStationFlow(st, r.Outflows, r.Inflows)
	}
	return flows, int(total), nil
}

func (p *PostgresSource) NetworkArrivals(ctx context.Context, w analytics.Window) ([]analytics.HourlyArrivals, error) {
	var rows []database.NetworkArrivalRow
	if err := p.db.WithContext(ctx).Raw(networkArrivalsSQL, w.From, w.To).Scan(&rows).Error; err != nil {
		return nil, queryError("aggregating network arrivals", err)
	}
	return foldDayTypes(rows), nil
}

// foldDayTypes sums per-weekday rows into weekday and weekend buckets.
func foldDayTypes(rows []database.NetworkArrivalRow) []analytics.HourlyArrivals {
	type key struct {
		hour int
		dt   analytics.DayType
	}
	sums := make(map[key]int)
	var order []key
	for _, r := range rows {
		k := key{hour: r.Hour, dt: analytics.DayTypeOf(r.DayOfWeek)}
		if _, seen := sums[k]; !seen {
			order = append(order, k)
		}
		sums[k] += r.Arrivals
	}
	out := make([]analytics.HourlyArrivals, 0, len(order))
	for _, k := range order {
		out = append(out, analytics.HourlyArrivals{Hour: k.hour, DayType: k.dt, Arrivals: sums[k]})
	}
	return out
}

func (p *PostgresSource) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return queryError("accessing connection pool", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return queryError("ping", err)
	}
	return nil
}

func (p *PostgresSource) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("error closing warehouse: %w", err)
	}
	return sqlDB.Close()
}
