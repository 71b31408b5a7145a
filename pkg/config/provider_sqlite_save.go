package config

import (
	"database/sql"
	"fmt"
	"strings"
)

// SaveConfig replaces the default configuration with c in one transaction.
// Log settings have no table and are not stored.
func (s *SQLiteProvider) SaveConfig(c *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR IGNORE INTO configs (name) VALUES ('default')`); err != nil {
		return fmt.Errorf("failed to create default config: %w", err)
	}

	w := c.Warehouse
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO warehouse_configs
		    (config_id, backend, connection_string, sqlite_path, stations_csv, trips_csv, push_down)
		VALUES (`+defaultConfigID+`, ?, ?, ?, ?, ?, ?)`,
		w.Backend, nullString(w.ConnectionString), nullString(w.SQLitePath),
		nullString(w.StationsCSV), nullString(w.TripsCSV), w.PushDown,
	); err != nil {
		return fmt.Errorf("failed to save warehouse config: %w", err)
	}

	cc := c.Cache
	var redis RedisData
	if cc.Redis != nil {
		redis = *cc.Redis
	}
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO cache_configs
		    (config_id, backend, ttl, redis_addr, redis_password, redis_db, redis_key_prefix)
		VALUES (`+defaultConfigID+`, ?, ?, ?, ?, ?, ?)`,
		cc.Backend, nullString(cc.TTL), nullString(redis.Addr), nullString(redis.Password),
		redis.DB, nullString(redis.KeyPrefix),
	); err != nil {
		return fmt.Errorf("failed to save cache config: %w", err)
	}

	a := c.Analysis
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO analysis_configs
		    (config_id, dataset_start, dataset_end, default_start, default_end, default_interval, top_n,
		     peak_threshold, near_capacity_threshold, at_capacity_threshold, significant_net_flow,
		     lost_rentals_per_event, price_per_rental, currency)
		VALUES (`+defaultConfigID+`, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(a.DatasetStart), nullString(a.DatasetEnd), nullString(a.DefaultStart), nullString(a.DefaultEnd),
		nullString(a.DefaultInterval), a.TopN,
		a.PeakThreshold, a.NearCapacityThreshold, a.AtCapacityThreshold, a.SignificantNetFlow,
		a.LostRentalsPerEvent, nullString(a.PricePerRental), nullString(a.Currency),
	); err != nil {
		return fmt.Errorf("failed to save analysis config: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM controller_configs WHERE config_id = ` + defaultConfigID); err != nil {
		return fmt.Errorf("failed to clear controllers: %w", err)
	}
	for _, con := range c.Controllers {
		var rest RESTServerData
		if con.RESTServer != nil {
			rest = *con.RESTServer
		}
		var warm CacheWarmerData
		if con.CacheWarmer != nil {
			warm = *con.CacheWarmer
		}
		if _, err := tx.Exec(`
			INSERT INTO controller_configs
			    (config_id, type, listen_addr, port, tls_cert, tls_key, enable_cors, allowed_origins,
			     warm_interval, warm_intervals, warm_workers)
			VALUES (`+defaultConfigID+`, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			con.Type, nullString(rest.ListenAddr), rest.Port, nullString(rest.Cert), nullString(rest.Key),
			rest.EnableCORS, nullString(strings.Join(rest.AllowedOrigins, ",")),
			nullString(warm.Interval), nullString(strings.Join(warm.Intervals, ",")), warm.Workers,
		); err != nil {
			return fmt.Errorf("failed to save %s controller: %w", con.Type, err)
		}
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
