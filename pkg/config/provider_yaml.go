package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Warehouse   WarehouseYAML    `yaml:"warehouse"`
		Cache       CacheYAML        `yaml:"cache,omitempty"`
		Analysis    AnalysisYAML     `yaml:"analysis,omitempty"`
		Log         LogYAML          `yaml:"log,omitempty"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Warehouse: WarehouseData{
			Backend:          yamlConfig.Warehouse.Backend,
			ConnectionString: yamlConfig.Warehouse.ConnectionString,
			SQLitePath:       yamlConfig.Warehouse.SQLitePath,
			StationsCSV:      yamlConfig.Warehouse.StationsCSV,
			TripsCSV:         yamlConfig.Warehouse.TripsCSV,
			PushDown:         yamlConfig.Warehouse.PushDown,
		},
		Cache: CacheData{
			Backend: yamlConfig.Cache.Backend,
			TTL:     yamlConfig.Cache.TTL,
		},
		Analysis: AnalysisData{
			DatasetStart:          yamlConfig.Analysis.DatasetStart,
			DatasetEnd:            yamlConfig.Analysis.DatasetEnd,
			DefaultStart:          yamlConfig.Analysis.DefaultStart,
			DefaultEnd:            yamlConfig.Analysis.DefaultEnd,
			DefaultInterval:       yamlConfig.Analysis.DefaultInterval,
			TopN:                  yamlConfig.Analysis.TopN,
			PeakThreshold:         yamlConfig.Analysis.Thresholds.Peak,
			NearCapacityThreshold: yamlConfig.Analysis.Thresholds.NearCapacity,
			AtCapacityThreshold:   yamlConfig.Analysis.Thresholds.AtCapacity,
			SignificantNetFlow:    yamlConfig.Analysis.Thresholds.SignificantNetFlow,
			LostRentalsPerEvent:   yamlConfig.Analysis.Revenue.LostRentalsPerEvent,
			PricePerRental:        yamlConfig.Analysis.Revenue.PricePerRental,
			Currency:              yamlConfig.Analysis.Revenue.Currency,
		},
		Log: LogData{
			File:       yamlConfig.Log.File,
			MaxSizeMB:  yamlConfig.Log.MaxSizeMB,
			MaxBackups: yamlConfig.Log.MaxBackups,
			MaxAgeDays: yamlConfig.Log.MaxAgeDays,
		},
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	if yamlConfig.Cache.Redis != nil {
		config.Cache.Redis = &RedisData{
			Addr:      yamlConfig.Cache.Redis.Addr,
			Password:  yamlConfig.Cache.Redis.Password,
			DB:        yamlConfig.Cache.Redis.DB,
			KeyPrefix: yamlConfig.Cache.Redis.KeyPrefix,
		}
	}

	// Convert controllers
	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}

		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				Cert:           controller.RESTServer.Cert,
				Key:            controller.RESTServer.Key,
				Port:           controller.RESTServer.Port,
				ListenAddr:     controller.RESTServer.ListenAddr,
				EnableCORS:     controller.RESTServer.EnableCORS,
				AllowedOrigins: controller.RESTServer.AllowedOrigins,
			}
		}

		if controller.CacheWarmer != nil {
			config.Controllers[i].CacheWarmer = &CacheWarmerData{
				Interval:  controller.CacheWarmer.Interval,
				Intervals: controller.CacheWarmer.Intervals,
				Workers:   controller.CacheWarmer.Workers,
			}
		}
	}

	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config, nil
}

// GetWarehouseConfig returns warehouse configuration
func (y *YAMLProvider) GetWarehouseConfig() (*WarehouseData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Warehouse, nil
}

// GetCacheConfig returns cache configuration
func (y *YAMLProvider) GetCacheConfig() (*CacheData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Cache, nil
}

// GetAnalysisConfig returns analysis configuration
func (y *YAMLProvider) GetAnalysisConfig() (*AnalysisData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Analysis, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return c.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags for parsing the file format
type WarehouseYAML struct {
	Backend          string `yaml:"backend"`
	ConnectionString string `yaml:"connection-string,omitempty"`
	SQLitePath       string `yaml:"sqlite-path,omitempty"`
	StationsCSV      string `yaml:"stations-csv,omitempty"`
	TripsCSV         string `yaml:"trips-csv,omitempty"`
	PushDown         bool   `yaml:"push-down,omitempty"`
}

type CacheYAML struct {
	Backend string     `yaml:"backend,omitempty"`
	TTL     string     `yaml:"ttl,omitempty"`
	Redis   *RedisYAML `yaml:"redis,omitempty"`
}

type RedisYAML struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"key-prefix,omitempty"`
}

type AnalysisYAML struct {
	DatasetStart    string         `yaml:"dataset-start,omitempty"`
	DatasetEnd      string         `yaml:"dataset-end,omitempty"`
	DefaultStart    string         `yaml:"default-start,omitempty"`
	DefaultEnd      string         `yaml:"default-end,omitempty"`
	DefaultInterval string         `yaml:"default-interval,omitempty"`
	TopN            int            `yaml:"top-n,omitempty"`
	Thresholds      ThresholdsYAML `yaml:"thresholds,omitempty"`
	Revenue         RevenueYAML    `yaml:"revenue,omitempty"`
}

type ThresholdsYAML struct {
	Peak               float64 `yaml:"peak,omitempty"`
	NearCapacity       float64 `yaml:"near-capacity,omitempty"`
	AtCapacity         float64 `yaml:"at-capacity,omitempty"`
	SignificantNetFlow int     `yaml:"significant-net-flow,omitempty"`
}

type RevenueYAML struct {
	LostRentalsPerEvent int    `yaml:"lost-rentals-per-event,omitempty"`
	PricePerRental      string `yaml:"price-per-rental,omitempty"`
	Currency            string `yaml:"currency,omitempty"`
}

type LogYAML struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
	MaxAgeDays int    `yaml:"max-age-days,omitempty"`
}

type ControllerYAML struct {
	Type        string           `yaml:"type,omitempty"`
	RESTServer  *RESTServerYAML  `yaml:"rest,omitempty"`
	CacheWarmer *CacheWarmerYAML `yaml:"cachewarmer,omitempty"`
}

type RESTServerYAML struct {
	Cert           string   `yaml:"cert,omitempty"`
	Key            string   `yaml:"key,omitempty"`
	Port           int      `yaml:"port,omitempty"`
	ListenAddr     string   `yaml:"listen-addr,omitempty"`
	EnableCORS     bool     `yaml:"enable-cors,omitempty"`
	AllowedOrigins []string `yaml:"allowed-origins,omitempty"`
}

type CacheWarmerYAML struct {
	Interval  string   `yaml:"interval,omitempty"`
	Intervals []string `yaml:"intervals,omitempty"`
	Workers   int      `yaml:"workers,omitempty"`
}
