package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Risk     RiskConfig     `yaml:"risk" mapstructure:"risk"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Datasets DatasetsConfig `yaml:"datasets" mapstructure:"datasets"`
	History  HistoryConfig  `yaml:"history" mapstructure:"history"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig configures the PostGIS connection.
type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// IngestConfig configures feature loading.
type IngestConfig struct {
	ProgressEvery int `yaml:"progress_every" mapstructure:"progress_every"`
	CopyBatchSize int `yaml:"copy_batch_size" mapstructure:"copy_batch_size"`
}

// RiskConfig names the tables the risk queries run against.
type RiskConfig struct {
	DamsTable   string `yaml:"dams_table" mapstructure:"dams_table"`
	PlantsTable string `yaml:"plants_table" mapstructure:"plants_table"`
	DamLimit    int    `yaml:"dam_limit" mapstructure:"dam_limit"`
}

// FetchConfig configures dataset downloads.
type FetchConfig struct {
	Dir         string  `yaml:"dir" mapstructure:"dir"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// DatasetsConfig locates the dataset manifest.
type DatasetsConfig struct {
	Manifest string `yaml:"manifest" mapstructure:"manifest"`
}

// HistoryConfig configures the local run log.
type HistoryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("floodrisk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FLOODRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ingest.progress_every", 100)
	v.SetDefault("ingest.copy_batch_size", 5000)
	v.SetDefault("risk.dams_table", "utah_dams")
	v.SetDefault("risk.plants_table", "power_plants")
	v.SetDefault("risk.dam_limit", 50)
	v.SetDefault("fetch.dir", "data")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("fetch.concurrency", 3)
	v.SetDefault("datasets.manifest", "datasets.yaml")
	v.SetDefault("history.path", "floodrisk_runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by the given command mode are set
// and within bounds. Problems are aggregated into a single error.
func (c *Config) Validate(mode string) error {
	var problems []string

	needsDB := func() {
		if c.Database.URL == "" {
			problems = append(problems, "database.url is required (FLOODRISK_DATABASE_URL)")
		}
	}

	switch mode {
	case "query":
		needsDB()
		if c.Risk.DamLimit < 1 {
			problems = append(problems, "risk.dam_limit must be >= 1")
		}
	case "ingest":
		needsDB()
		if c.Ingest.ProgressEvery < 1 {
			problems = append(problems, "ingest.progress_every must be >= 1")
		}
		if c.Ingest.CopyBatchSize < 1 || c.Ingest.CopyBatchSize > 50000 {
			problems = append(problems, "ingest.copy_batch_size must be between 1 and 50000")
		}
	case "serve":
		needsDB()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "fetch":
		if c.Fetch.Concurrency < 1 || c.Fetch.Concurrency > 16 {
			problems = append(problems, "fetch.concurrency must be between 1 and 16")
		}
		if c.Fetch.RatePerSec <= 0 {
			problems = append(problems, "fetch.rate_per_sec must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
