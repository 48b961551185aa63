package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"breakout-scanner/internal/types"
)

// Config is the file-backed configuration, config.yaml at the repo root.
type Config struct {
	Universe struct {
		Static  []string `yaml:"static"`
		Dynamic struct {
			Enabled bool `yaml:"enabled"`
			TopN    int  `yaml:"top_n"`
		} `yaml:"dynamic"`
	} `yaml:"universe"`

	Strategy types.StrategyParameters `yaml:"strategy"`

	Scheduler struct {
		MinIntervalMs int `yaml:"min_interval_ms"`
		RetryDelayMs  int `yaml:"retry_delay_ms"`
		MaxRetries    int `yaml:"max_retries"`
	} `yaml:"scheduler"`

	Acquisition struct {
		BatchSize       int `yaml:"batch_size"`
		BatchDelayMs    int `yaml:"batch_delay_ms"`
		CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
	} `yaml:"acquisition"`

	Watchlist struct {
		TopN        int `yaml:"top_n"`
		PollSeconds int `yaml:"poll_seconds"`
	} `yaml:"watchlist"`

	Scan struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"scan"`

	Market struct {
		Location string `yaml:"location"`
		Open     string `yaml:"open"`
		Close    string `yaml:"close"`
	} `yaml:"market"`

	Data struct {
		Source       string         `yaml:"source"` // yahoo, kite, or chain
		ProxyURL     string         `yaml:"proxy_url"`
		KiteExchange string         `yaml:"kite_exchange"`
		KiteTokens   map[string]int `yaml:"kite_tokens"`
	} `yaml:"data"`

	Cache struct {
		Backend string `yaml:"backend"` // memory or redis
	} `yaml:"cache"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Env carries secrets and endpoints that never belong in config.yaml.
type Env struct {
	RedisAddr        string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword    string `envconfig:"REDIS_PASSWORD"`
	RedisDB          int    `envconfig:"REDIS_DB"`
	KiteAPIKey       string `envconfig:"KITE_API_KEY"`
	KiteAccessToken  string `envconfig:"KITE_ACCESS_TOKEN"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
}

// Load reads and validates the yaml configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv reads environment-sourced settings.
func LoadEnv() (*Env, error) {
	env := &Env{}
	if err := envconfig.Process("", env); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return env, nil
}

func (c *Config) applyDefaults() {
	if c.Strategy.BreakoutFactor == 0 {
		c.Strategy.BreakoutFactor = 0.5
	}
	if c.Strategy.VolatilityMin == 0 && c.Strategy.VolatilityMax == 0 {
		c.Strategy.VolatilityMin = 2
		c.Strategy.VolatilityMax = 8
	}
	if c.Strategy.ProximityPct == 0 {
		c.Strategy.ProximityPct = 3
	}
	if c.Strategy.Weights == (types.ScoreWeights{}) {
		c.Strategy.Weights = types.DefaultScoreWeights()
	}
	if c.Market.Location == "" {
		c.Market.Location = "America/New_York"
	}
	if c.Market.Open == "" {
		c.Market.Open = "09:30"
	}
	if c.Market.Close == "" {
		c.Market.Close = "16:00"
	}
	if c.Data.Source == "" {
		c.Data.Source = "yahoo"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Scan.Cron == "" {
		// every 30 minutes during US trading hours, weekdays
		c.Scan.Cron = "*/30 9-16 * * 1-5"
	}
}

// Validate rejects configurations the scanner cannot run with.
func (c *Config) Validate() error {
	if len(c.Universe.Static) == 0 && !c.Universe.Dynamic.Enabled {
		return fmt.Errorf("universe is empty: set universe.static or enable universe.dynamic")
	}
	if c.Strategy.BreakoutFactor <= 0 || c.Strategy.BreakoutFactor > 1 {
		return fmt.Errorf("strategy.breakout_factor %.3f outside (0,1]", c.Strategy.BreakoutFactor)
	}
	if c.Strategy.VolatilityMin < 0 || c.Strategy.VolatilityMax < c.Strategy.VolatilityMin {
		return fmt.Errorf("invalid volatility band [%.2f, %.2f]",
			c.Strategy.VolatilityMin, c.Strategy.VolatilityMax)
	}
	switch c.Data.Source {
	case "yahoo", "kite", "chain":
	default:
		return fmt.Errorf("invalid data.source %q: must be yahoo, kite, or chain", c.Data.Source)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache.backend %q: must be memory or redis", c.Cache.Backend)
	}
	return nil
}
