// Package config loads application configuration from config.yaml and the
// environment, and owns global logger initialization.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Gazetteer GazetteerConfig `yaml:"gazetteer" mapstructure:"gazetteer"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Distance  DistanceConfig  `yaml:"distance" mapstructure:"distance"`
	Insight   InsightConfig   `yaml:"insight" mapstructure:"insight"`
	Xref      XrefConfig      `yaml:"xref" mapstructure:"xref"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GazetteerConfig configures the offline coordinate table.
type GazetteerConfig struct {
	// File is an optional anchors CSV merged over the embedded table.
	File string `yaml:"file" mapstructure:"file"`
	// FromStore merges anchors from the configured store as well.
	FromStore bool `yaml:"from_store" mapstructure:"from_store"`
	// ReverseCutoffKM bounds nearest-anchor labeling of centroids.
	ReverseCutoffKM float64 `yaml:"reverse_cutoff_km" mapstructure:"reverse_cutoff_km"`
}

// RegistryConfig configures facility-row validation.
type RegistryConfig struct {
	// AllowedTypes, when non-empty, turns on strict type checking: rows
	// whose type is not listed are rejected instead of passed through.
	AllowedTypes []string `yaml:"allowed_types" mapstructure:"allowed_types"`
}

// DistanceConfig configures cross-type edge selection.
type DistanceConfig struct {
	TypeA   string `yaml:"type_a" mapstructure:"type_a"`
	TypeB   string `yaml:"type_b" mapstructure:"type_b"`
	TopK    int    `yaml:"top_k" mapstructure:"top_k"`
	Workers int    `yaml:"workers" mapstructure:"workers"`
}

// InsightConfig holds the thresholds for the insight rules.
type InsightConfig struct {
	ConcentrationThreshold float64 `yaml:"concentration_threshold" mapstructure:"concentration_threshold"`
	MinCountries           int     `yaml:"min_countries" mapstructure:"min_countries"`
	MigrantThreshold       float64 `yaml:"migrant_threshold" mapstructure:"migrant_threshold"`
}

// XrefConfig configures excerpt-to-cluster annotation.
type XrefConfig struct {
	// Aliases maps normalized country variants to their canonical form,
	// extending the built-in table (e.g. "VIET NAM" -> "VIETNAM").
	Aliases map[string]string `yaml:"aliases" mapstructure:"aliases"`
}

// IngestConfig configures input file parsing.
type IngestConfig struct {
	// Charset names the source encoding for CSV inputs ("utf-8" passthrough).
	Charset string `yaml:"charset" mapstructure:"charset"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateRPS     float64  `yaml:"rate_rps" mapstructure:"rate_rps"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
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
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_rps", 2.0)
	v.SetDefault("server.rate_burst", 4)
	v.SetDefault("gazetteer.reverse_cutoff_km", 500.0)
	v.SetDefault("distance.type_a", "FINISHED GOODS")
	v.SetDefault("distance.type_b", "FINISHED GOODS - COMPONENTS")
	v.SetDefault("distance.top_k", 25)
	v.SetDefault("distance.workers", 4)
	v.SetDefault("insight.concentration_threshold", 0.25)
	v.SetDefault("insight.min_countries", 3)
	v.SetDefault("insight.migrant_threshold", 0.5)
	v.SetDefault("ingest.charset", "utf-8")

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

// Validate checks the configuration before a run starts. All violations are
// collected so the operator sees every problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if c.Distance.TopK < 0 {
		errs = append(errs, fmt.Sprintf("distance.top_k must be >= 0, got %d", c.Distance.TopK))
	}
	if c.Distance.Workers < 1 {
		errs = append(errs, fmt.Sprintf("distance.workers must be >= 1, got %d", c.Distance.Workers))
	}
	if strings.TrimSpace(c.Distance.TypeA) == "" || strings.TrimSpace(c.Distance.TypeB) == "" {
		errs = append(errs, "distance.type_a and distance.type_b must be set")
	} else if strings.EqualFold(strings.TrimSpace(c.Distance.TypeA), strings.TrimSpace(c.Distance.TypeB)) {
		errs = append(errs, "distance.type_a and distance.type_b must name different types")
	}

	if c.Insight.ConcentrationThreshold < 0 || c.Insight.ConcentrationThreshold > 1 {
		errs = append(errs, fmt.Sprintf("insight.concentration_threshold must be in [0,1], got %g", c.Insight.ConcentrationThreshold))
	}
	if c.Insight.MigrantThreshold < 0 || c.Insight.MigrantThreshold > 1 {
		errs = append(errs, fmt.Sprintf("insight.migrant_threshold must be in [0,1], got %g", c.Insight.MigrantThreshold))
	}
	if c.Insight.MinCountries < 1 {
		errs = append(errs, fmt.Sprintf("insight.min_countries must be >= 1, got %d", c.Insight.MinCountries))
	}

	if c.Gazetteer.ReverseCutoffKM < 0 {
		errs = append(errs, fmt.Sprintf("gazetteer.reverse_cutoff_km must be >= 0, got %g", c.Gazetteer.ReverseCutoffKM))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be in [0,65535], got %d", c.Server.Port))
	}
	if c.Server.RateRPS <= 0 {
		errs = append(errs, fmt.Sprintf("server.rate_rps must be > 0, got %g", c.Server.RateRPS))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
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
