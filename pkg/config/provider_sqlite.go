package config

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// The schema is created by the "config" migration set in pkg/migrate.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// DB exposes the underlying handle so callers can run migrations against it.
func (s *SQLiteProvider) DB() *sql.DB {
	return s.db
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	warehouse, err := s.GetWarehouseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load warehouse config: %w", err)
	}
	config.Warehouse = *warehouse

	cache, err := s.GetCacheConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load cache config: %w", err)
	}
	config.Cache = *cache

	analysis, err := s.GetAnalysisConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis config: %w", err)
	}
	config.Analysis = *analysis

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

const defaultConfigID = `(SELECT id FROM configs WHERE name = 'default')`

// GetWarehouseConfig returns warehouse configuration from the database
func (s *SQLiteProvider) GetWarehouseConfig() (*WarehouseData, error) {
	query := `
		SELECT backend, connection_string, sqlite_path, stations_csv, trips_csv, push_down
		FROM warehouse_configs
		WHERE config_id = ` + defaultConfigID

	var w WarehouseData
	var dsn, path, stationsCSV, tripsCSV sql.NullString
	err := s.db.QueryRow(query).Scan(&w.Backend, &dsn, &path, &stationsCSV, &tripsCSV, &w.PushDown)
	if err == sql.ErrNoRows {
		return &w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouse config: %w", err)
	}
	w.ConnectionString = dsn.String
	w.SQLitePath = path.String
	w.StationsCSV = stationsCSV.String
	w.TripsCSV = tripsCSV.String
	return &w, nil
}

// GetCacheConfig returns cache configuration from the database
func (s *SQLiteProvider) GetCacheConfig() (*CacheData, error) {
	query := `
		SELECT backend, ttl, redis_addr, redis_password, redis_db, redis_key_prefix
		FROM cache_configs
		WHERE config_id = ` + defaultConfigID

	var c CacheData
	var ttl, addr, password, prefix sql.NullString
	var db sql.NullInt64
	err := s.db.QueryRow(query).Scan(&c.Backend, &ttl, &addr, &password, &db, &prefix)
	if err == sql.ErrNoRows {
		return &c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache config: %w", err)
	}
	c.TTL = ttl.String

	// Only attach Redis settings when an address is present
	if addr.Valid && addr.String != "" {
		c.Redis = &RedisData{
			Addr:      addr.String,
			Password:  password.String,
			DB:        int(db.Int64),
			KeyPrefix: prefix.String,
		}
	}
	return &c, nil
}

// GetAnalysisConfig returns analysis tunables from the database
func (s *SQLiteProvider) GetAnalysisConfig() (*AnalysisData, error) {
	query := `
		SELECT dataset_start, dataset_end, default_start, default_end, default_interval, top_n,
		       peak_threshold, near_capacity_threshold, at_capacity_threshold, significant_net_flow,
		       lost_rentals_per_event, price_per_rental, currency
		FROM analysis_configs
		WHERE config_id = ` + defaultConfigID

	var a AnalysisData
	var datasetStart, datasetEnd, defaultStart, defaultEnd, interval, price, currency sql.NullString
	var topN, significant, lost sql.NullInt64
	var peak, near, at sql.NullFloat64
	err := s.db.QueryRow(query).Scan(
		&datasetStart, &datasetEnd, &defaultStart, &defaultEnd, &interval, &topN,
		&peak, &near, &at, &significant,
		&lost, &price, &currency,
	)
	if err == sql.ErrNoRows {
		return &a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis config: %w", err)
	}

	// NULL columns fall through to ApplyDefaults
	a.DatasetStart = datasetStart.String
	a.DatasetEnd = datasetEnd.String
	a.DefaultStart = defaultStart.String
	a.DefaultEnd = defaultEnd.String
	a.DefaultInterval = interval.String
	a.TopN = int(topN.Int64)
	a.PeakThreshold = peak.Float64
	a.NearCapacityThreshold = near.Float64
	a.AtCapacityThreshold = at.Float64
	a.SignificantNetFlow = int(significant.Int64)
	a.LostRentalsPerEvent = int(lost.Int64)
	a.PricePerRental = price.String
	a.Currency = currency.String
	return &a, nil
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	query := `
		SELECT type, listen_addr, port, tls_cert, tls_key, enable_cors, allowed_origins,
		       warm_interval, warm_intervals, warm_workers
		FROM controller_configs
		WHERE config_id = ` + defaultConfigID + ` AND enabled = 1
		ORDER BY id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var ctrlType string
		var listenAddr, cert, key, origins, warmInterval, warmIntervals sql.NullString
		var port, warmWorkers sql.NullInt64
		var enableCORS sql.NullBool

		if err := rows.Scan(&ctrlType, &listenAddr, &port, &cert, &key, &enableCORS, &origins,
			&warmInterval, &warmIntervals, &warmWorkers); err != nil {
			return nil, fmt.Errorf("failed to scan controller row: %w", err)
		}

		controller := ControllerData{Type: ctrlType}
		switch ctrlType {
		case "rest", "restserver":
			controller.RESTServer = &RESTServerData{
				ListenAddr:     listenAddr.String,
				Port:           int(port.Int64),
				Cert:           cert.String,
				Key:            key.String,
				EnableCORS:     enableCORS.Bool,
				AllowedOrigins: splitList(origins.String),
			}
		case "cachewarmer":
			controller.CacheWarmer = &CacheWarmerData{
				Interval:  warmInterval.String,
				Intervals: splitList(warmIntervals.String),
				Workers:   int(warmWorkers.Int64),
			}
		}
		controllers = append(controllers, controller)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate controllers: %w", err)
	}
	return controllers, nil
}

// IsReadOnly returns false; the tables may be edited with any SQLite client
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// splitList parses a comma-separated column into its trimmed, non-empty parts.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
