package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

const dateLayout = "2006-01-02"

// ApplyDefaults fills unset fields with the values the dashboard ships with.
func ApplyDefaults(c *ConfigData) {
	if c.Warehouse.Backend == "" {
		c.Warehouse.Backend = "postgres"
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "1h"
	}
	if c.Cache.Redis != nil && c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = "cyclehire:"
	}

	a := &c.Analysis
	if a.DatasetStart == "" {
		a.DatasetStart = "2015-01-04"
	}
	if a.DatasetEnd == "" {
		a.DatasetEnd = "2023-01-15"
	}
	if a.DefaultStart == "" {
		a.DefaultStart = "2022-01-01"
	}
	if a.DefaultEnd == "" {
		a.DefaultEnd = a.DatasetEnd
	}
	if a.DefaultInterval == "" {
		a.DefaultInterval = "weekly"
	}
	if a.TopN == 0 {
		a.TopN = 10
	}
	if a.PeakThreshold == 0 {
		a.PeakThreshold = 95
	}
	if a.NearCapacityThreshold == 0 {
		a.NearCapacityThreshold = 80
	}
	if a.AtCapacityThreshold == 0 {
		a.AtCapacityThreshold = 100
	}
	if a.SignificantNetFlow == 0 {
		a.SignificantNetFlow = 20
	}
	if a.LostRentalsPerEvent == 0 {
		a.LostRentalsPerEvent = 5
	}
	if a.PricePerRental == "" {
		a.PricePerRental = "1.65"
	}
	if a.Currency == "" {
		a.Currency = "GBP"
	}

	for i := range c.Controllers {
		switch c.Controllers[i].Type {
		case "rest", "restserver":
			if c.Controllers[i].RESTServer == nil {
				c.Controllers[i].RESTServer = &RESTServerData{}
			}
			rs := c.Controllers[i].RESTServer
			if rs.ListenAddr == "" {
				rs.ListenAddr = "0.0.0.0"
			}
			if rs.Port == 0 {
				rs.Port = 8080
			}
		case "cachewarmer":
			if c.Controllers[i].CacheWarmer == nil {
				c.Controllers[i].CacheWarmer = &CacheWarmerData{}
			}
			if c.Controllers[i].CacheWarmer.Interval == "" {
				c.Controllers[i].CacheWarmer.Interval = "30m"
			}
			if c.Controllers[i].CacheWarmer.Workers <= 0 {
				c.Controllers[i].CacheWarmer.Workers = 4
			}
		}
	}
}

// Validate checks the configuration for values the service cannot run with.
func Validate(c *ConfigData) error {
	switch c.Warehouse.Backend {
	case "postgres":
		if c.Warehouse.ConnectionString == "" {
			return fmt.Errorf("%w: warehouse.connection-string is required for the postgres backend", ErrInvalidConfig)
		}
	case "sqlite":
		if c.Warehouse.SQLitePath == "" {
			return fmt.Errorf("%w: warehouse.sqlite-path is required for the sqlite backend", ErrInvalidConfig)
		}
	case "memory":
		if c.Warehouse.StationsCSV == "" || c.Warehouse.TripsCSV == "" {
			return fmt.Errorf("%w: warehouse.stations-csv and warehouse.trips-csv are required for the memory backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown warehouse backend %q", ErrInvalidConfig, c.Warehouse.Backend)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis == nil || c.Cache.Redis.Addr == "" {
			return fmt.Errorf("%w: cache.redis.addr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("%w: cache.ttl %q: %v", ErrInvalidConfig, c.Cache.TTL, err)
	}

	a := c.Analysis
	for name, v := range map[string]string{
		"dataset-start": a.DatasetStart,
		"dataset-end":   a.DatasetEnd,
		"default-start": a.DefaultStart,
		"default-end":   a.DefaultEnd,
	} {
		if _, err := time.Parse(dateLayout, v); err != nil {
			return fmt.Errorf("%w: analysis.%s %q is not a YYYY-MM-DD date", ErrInvalidConfig, name, v)
		}
	}
	if a.DatasetEnd < a.DatasetStart {
		return fmt.Errorf("%w: analysis.dataset-end is before analysis.dataset-start", ErrInvalidConfig)
	}
	if a.NearCapacityThreshold >= a.AtCapacityThreshold {
		return fmt.Errorf("%w: near-capacity threshold %.1f must be below at-capacity threshold %.1f",
			ErrInvalidConfig, a.NearCapacityThreshold, a.AtCapacityThreshold)
	}
	if a.TopN < 0 || a.SignificantNetFlow < 0 || a.LostRentalsPerEvent < 0 {
		return fmt.Errorf("%w: analysis counts must not be negative", ErrInvalidConfig)
	}

	for _, con := range c.Controllers {
		switch con.Type {
		case "rest", "restserver":
		case "cachewarmer":
			if con.CacheWarmer == nil {
				return fmt.Errorf("%w: cachewarmer controller has no settings", ErrInvalidConfig)
			}
			if _, err := time.ParseDuration(con.CacheWarmer.Interval); err != nil {
				return fmt.Errorf("%w: cachewarmer.interval %q: %v", ErrInvalidConfig, con.CacheWarmer.Interval, err)
			}
		default:
			return fmt.Errorf("%w: unknown controller type: %s", ErrInvalidConfig, con.Type)
		}
	}
	return nil
}

// Environment variables that override file-based configuration.
const (
	EnvWarehouseDSN    = "CYCLEHIRE_WAREHOUSE_DSN"
	EnvWarehouseSQLite = "CYCLEHIRE_WAREHOUSE_SQLITE"
	EnvRedisAddr       = "CYCLEHIRE_REDIS_ADDR"
	EnvRedisPassword   = "CYCLEHIRE_REDIS_PASSWORD"
	EnvHTTPPort        = "CYCLEHIRE_HTTP_PORT"
	EnvLogFile         = "CYCLEHIRE_LOG_FILE"
)

// LoadEnvFiles reads KEY=value files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("error loading env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and deployment-specific settings from the environment.
func ApplyEnv(c *ConfigData) error {
	if v := os.Getenv(EnvWarehouseDSN); v != "" {
		c.Warehouse.ConnectionString = v
	}
	if v := os.Getenv(EnvWarehouseSQLite); v != "" {
		c.Warehouse.SQLitePath = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		if c.Cache.Redis == nil {
			c.Cache.Redis = &RedisData{}
		}
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		if c.Cache.Redis == nil {
			c.Cache.Redis = &RedisData{}
		}
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a port number", ErrInvalidConfig, EnvHTTPPort, v)
		}
		for i := range c.Controllers {
			if c.Controllers[i].RESTServer != nil {
				c.Controllers[i].RESTServer.Port = port
			}
		}
	}
	return nil
}

// Finalize applies environment overrides and defaults, then validates.
func Finalize(c *ConfigData) error {
	if err := ApplyEnv(c); err != nil {
		return err
	}
	ApplyDefaults(c)
	return Validate(c)
}
