package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/helioscope/solar-anomaly/internal/analytics"
	"github.com/helioscope/solar-anomaly/internal/detectors"
)

// Config captures the settings required to boot the anomaly engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Detection DetectionConfig `yaml:"detection"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
	Kafka     KafkaConfig     `yaml:"kafka"`
}

// ServerConfig controls the gRPC, HTTP and metrics listeners.
type ServerConfig struct {
	GRPCAddress     string        `yaml:"grpcAddress"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory | postgres
	DatabaseURL string `yaml:"databaseURL"`
	Migrate     bool   `yaml:"migrate"`
}

// DetectionConfig controls scheduled detection runs.
type DetectionConfig struct {
	Interval           time.Duration        `yaml:"interval"`
	RunOnStart         bool                 `yaml:"runOnStart"`
	LookbackDays       int                  `yaml:"lookbackDays"`
	RunTimeout         time.Duration        `yaml:"runTimeout"`
	Workers            int                  `yaml:"workers"`
	MaxReadingsPerUnit int                  `yaml:"maxReadingsPerUnit"`
	Thresholds         detectors.Thresholds `yaml:"thresholds"`
}

// AnalyticsConfig holds analytics constants and the recommendation rule pack.
type AnalyticsConfig struct {
	analytics.Settings  `yaml:",inline"`
	RecommendationsPath string `yaml:"recommendationsPath"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// CacheConfig controls caching of analytics reports. Backend is memory or valkey.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	PoolSize     int           `yaml:"poolSize"`
	TLS          bool          `yaml:"tls"`
	AnalyticsTTL time.Duration `yaml:"analyticsTTL"`
	// FillWait bounds how long a request waits for another replica to fill a report.
	FillWait      time.Duration `yaml:"fillWait"`
	MemoryEntries int           `yaml:"memoryEntries"`
}

// KafkaConfig controls publication of newly recorded findings.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// Load initialises Config from .env, a YAML file and environment overrides,
// in that order of precedence (lowest first).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("SOLAR_ANOMALY_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			GRPCAddress:     ":50051",
			HTTPAddress:     ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{Driver: "memory", Migrate: true},
		Detection: DetectionConfig{
			Interval:           6 * time.Hour,
			LookbackDays:       30,
			RunTimeout:         30 * time.Minute,
			Workers:            4,
			MaxReadingsPerUnit: 50000,
			Thresholds:         detectors.DefaultThresholds(),
		},
		Analytics: AnalyticsConfig{
			Settings:            analytics.DefaultSettings(),
			RecommendationsPath: "configs/recommendations.yaml",
		},
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Cache: CacheConfig{
			Backend:       "memory",
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
			PoolSize:      10,
			AnalyticsTTL:  5 * time.Minute,
			FillWait:      2 * time.Second,
			MemoryEntries: 1024,
		},
		Kafka: KafkaConfig{Topic: "solar.findings", WriteTimeout: 5 * time.Second},
	}
}

// Validate rejects settings the engine cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return errors.New("config: storage.databaseURL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Detection.Interval <= 0 {
		return errors.New("config: detection.interval must be positive")
	}
	if c.Detection.LookbackDays <= 0 {
		return errors.New("config: detection.lookbackDays must be positive")
	}
	if c.Detection.Workers <= 0 {
		return errors.New("config: detection.workers must be positive")
	}
	if err := c.Detection.Thresholds.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Analytics.PeakSunHours <= 0 || c.Analytics.MaxWindowDays <= 0 {
		return errors.New("config: analytics.peakSunHours and analytics.maxWindowDays must be positive")
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "memory":
		case "valkey":
			if c.Cache.Addr == "" {
				return errors.New("config: cache.addr is required for the valkey backend")
			}
		default:
			return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
		}
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("config: kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOLAR_ANOMALY_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("SOLAR_ANOMALY_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("SOLAR_ANOMALY_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SOLAR_ANOMALY_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("SOLAR_ANOMALY_DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	envBool("SOLAR_ANOMALY_MIGRATE", &cfg.Storage.Migrate)
	envDuration("SOLAR_ANOMALY_DETECTION_INTERVAL", &cfg.Detection.Interval)
	envBool("SOLAR_ANOMALY_RUN_ON_START", &cfg.Detection.RunOnStart)
	envInt("SOLAR_ANOMALY_LOOKBACK_DAYS", &cfg.Detection.LookbackDays)
	envInt("SOLAR_ANOMALY_WORKERS", &cfg.Detection.Workers)
	if v := os.Getenv("SOLAR_ANOMALY_RECOMMENDATIONS_PATH"); v != "" {
		cfg.Analytics.RecommendationsPath = v
	}
	if v := os.Getenv("SOLAR_ANOMALY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SOLAR_ANOMALY_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SOLAR_ANOMALY_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	envBool("SOLAR_ANOMALY_CACHE_ENABLED", &cfg.Cache.Enabled)
	if v := os.Getenv("SOLAR_ANOMALY_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("SOLAR_ANOMALY_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("SOLAR_ANOMALY_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("SOLAR_ANOMALY_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	envInt("SOLAR_ANOMALY_CACHE_DB", &cfg.Cache.DB)
	envBool("SOLAR_ANOMALY_CACHE_TLS", &cfg.Cache.TLS)
	envDuration("SOLAR_ANOMALY_CACHE_TTL", &cfg.Cache.AnalyticsTTL)
	envInt("SOLAR_ANOMALY_CACHE_POOL_SIZE", &cfg.Cache.PoolSize)
	envBool("SOLAR_ANOMALY_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("SOLAR_ANOMALY_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SOLAR_ANOMALY_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
