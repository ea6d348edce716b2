package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	APIKey  string `mapstructure:"api_key"` // empty disables bearer auth on /v1
	EnvName string `mapstructure:"env"`     // "dev" or "prod"
}

type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type FeedsConfig struct {
	Path string `mapstructure:"path"` // feed id mapping file (feedIds.json)
}

type BroadcastConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	SendBuffer   int           `mapstructure:"send_buffer"` // per-connection outbound queue
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	// Support environment variables with dot notation (e.g., SERVER_API_KEY)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			log.Fatalf("failed to read config: %v", err)
		}
		// No config file is fine; defaults plus env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	if cfg.Server.EnvName == "prod" && cfg.Server.APIKey == "" {
		// Prod deployments keep the API key in Parameter Store.
		cfg.Server.APIKey = getParameterStoreValue("PRICESTREAM_API_KEY", true)
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.env", "dev")

	v.SetDefault("upstream.base_url", "https://crossbar.switchboard.xyz")
	v.SetDefault("upstream.timeout", 10*time.Second)

	v.SetDefault("feeds.path", "feedIds.json")

	v.SetDefault("broadcast.interval", time.Second)
	v.SetDefault("broadcast.fetch_timeout", 5*time.Second)
	v.SetDefault("broadcast.cache_ttl", 1500*time.Millisecond)
	v.SetDefault("broadcast.send_buffer", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "dev")
}
