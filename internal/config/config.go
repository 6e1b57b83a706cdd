package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	// Requests per second allowed on the query API; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr              string `mapstructure:"addr"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"`
	PositionKeyPrefix string `mapstructure:"position_key_prefix"`
}

type IngestConfig struct {
	// StartLine is the first line number ingested for a file that has
	// never been seen. Lines are 1-based.
	StartLine int64 `mapstructure:"start_line"`

	// ParsePolicy is "skip" (log the malformed line, advance past it)
	// or "halt" (stop the file's run at the first malformed line).
	ParsePolicy string `mapstructure:"parse_policy"`

	// TailBuffer is the per-subscriber buffer for the live tail stream.
	TailBuffer int `mapstructure:"tail_buffer"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. LOGVAULT_DATABASE_DSN
	viper.SetEnvPrefix("logvault")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.rate_limit", 0.0)
	viper.SetDefault("server.rate_burst", 20)
	viper.SetDefault("redis.position_key_prefix", "position")
	viper.SetDefault("ingest.start_line", 1)
	viper.SetDefault("ingest.parse_policy", "skip")
	viper.SetDefault("ingest.tail_buffer", 256)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
