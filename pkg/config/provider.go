package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetWarehouseConfig() (*WarehouseData, error)
	GetCacheConfig() (*CacheData, error)
	GetAnalysisConfig() (*AnalysisData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Warehouse   WarehouseData    `json:"warehouse"`
	Cache       CacheData        `json:"cache"`
	Analysis    AnalysisData     `json:"analysis"`
	Log         LogData          `json:"log,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// WarehouseData selects and configures the trip/station data source.
type WarehouseData struct {
	// Backend is one of "postgres", "sqlite" or "memory".
	Backend          string `json:"backend"`
	ConnectionString string `json:"connection_string,omitempty"`
	SQLitePath       string `json:"sqlite_path,omitempty"`
	// StationsCSV and TripsCSV are loaded into memory by the memory backend.
	StationsCSV string `json:"stations_csv,omitempty"`
	TripsCSV    string `json:"trips_csv,omitempty"`
	// PushDown lets the postgres backend aggregate in SQL instead of shipping raw trips.
	PushDown bool `json:"push_down,omitempty"`
}

// CacheData configures the result cache.
type CacheData struct {
	// Backend is "memory" or "redis".
	Backend string     `json:"backend"`
	TTL     string     `json:"ttl,omitempty"`
	Redis   *RedisData `json:"redis,omitempty"`
}

type RedisData struct {
	Addr      string `json:"addr"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// AnalysisData holds the tunables of the analytics core.
type AnalysisData struct {
	DatasetStart    string `json:"dataset_start"`
	DatasetEnd      string `json:"dataset_end"`
	DefaultStart    string `json:"default_start"`
	DefaultEnd      string `json:"default_end"`
	DefaultInterval string `json:"default_interval"`
	TopN            int    `json:"top_n"`

	PeakThreshold         float64 `json:"peak_threshold"`
	NearCapacityThreshold float64 `json:"near_capacity_threshold"`
	AtCapacityThreshold   float64 `json:"at_capacity_threshold"`
	SignificantNetFlow    int     `json:"significant_net_flow"`

	LostRentalsPerEvent int    `json:"lost_rentals_per_event"`
	PricePerRental      string `json:"price_per_rental"`
	Currency            string `json:"currency"`
}

// LogData configures the optional rotating log file.
type LogData struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// ControllerData holds the configuration for various controller backends
type ControllerData struct {
	Type        string           `json:"type,omitempty"`
	RESTServer  *RESTServerData  `json:"rest,omitempty"`
	CacheWarmer *CacheWarmerData `json:"cachewarmer,omitempty"`
}

type RESTServerData struct {
	Cert           string   `json:"cert,omitempty"`
	Key            string   `json:"key,omitempty"`
	Port           int      `json:"port,omitempty"`
	ListenAddr     string   `json:"listen_addr,omitempty"`
	EnableCORS     bool     `json:"enable_cors,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

type CacheWarmerData struct {
	// Interval between refreshes of the default window, e.g. "30m".
	Interval string `json:"interval,omitempty"`
	// Intervals lists the normalisation intervals to precompute; empty means the default only.
	Intervals []string `json:"intervals,omitempty"`
	// Workers bounds how many reports are computed at once.
	Workers int `json:"workers,omitempty"`
}
