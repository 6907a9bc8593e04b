package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"meanrev/internal/logger"
	"meanrev/internal/market/kline"
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Data     DataConfig     `yaml:"data"`
	Backtest BacktestConfig `yaml:"backtest"`
	Logging  logger.Config  `yaml:"logging"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// ExchangeConfig represents exchange client configuration
type ExchangeConfig struct {
	Name      string `yaml:"name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	TestNet   bool   `yaml:"testnet"`
}

// DenyRuleConfig excludes a symbol over a date range from the cache
type DenyRuleConfig struct {
	Symbol string `yaml:"symbol"`
	Start  string `yaml:"start"` // YYYY-MM-DD inclusive
	End    string `yaml:"end"`   // YYYY-MM-DD exclusive
}

// AllowIncompleteConfig exempts a (symbol, day) from the detail cache
// completeness check
type AllowIncompleteConfig struct {
	Symbol string `yaml:"symbol"`
	Date   string `yaml:"date"` // YYYY-MM-DD
}

// DataConfig represents market data and cache configuration
type DataConfig struct {
	Dir             string                  `yaml:"dir"`
	Interval        string                  `yaml:"interval"`
	DetailInterval  string                  `yaml:"detail_interval"`
	Window          int                     `yaml:"window"`
	RealBandK       float64                 `yaml:"real_band_k"`
	Symbols         []string                `yaml:"symbols"`
	Updater         kline.UpdaterConfig     `yaml:"updater"`
	Denylist        []DenyRuleConfig        `yaml:"denylist"`
	AllowIncomplete []AllowIncompleteConfig `yaml:"allow_incomplete"`
}

// BacktestConfig represents portfolio simulation configuration
type BacktestConfig struct {
	InitialMoney float64           `yaml:"initial_money"`
	Start        string            `yaml:"start"` // YYYY-MM-DD
	End          string            `yaml:"end"`   // YYYY-MM-DD
	BuyVariant   int               `yaml:"buy_variant"`
	SellVariant  int               `yaml:"sell_variant"`
	OutputDir    string            `yaml:"output_dir"`
	FillRetries  int               `yaml:"fill_retries"`
	Param        map[string]string `yaml:"param"` // value or start:stop:step range specs
}

// Load loads configuration from a YAML file, with environment variable
// overrides (MEANREV_ prefix) applied after parsing. A .env file next to
// the process is picked up when present.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	if c.Data.Interval == "" {
		c.Data.Interval = string(kline.Interval1d)
	}
	if c.Data.DetailInterval == "" {
		c.Data.DetailInterval = string(kline.Interval1m)
	}
	if c.Data.Window == 0 {
		c.Data.Window = 20
	}
	if c.Data.RealBandK == 0 {
		c.Data.RealBandK = -2
	}
	if c.Data.Updater.Concurrency == 0 {
		c.Data.Updater = *kline.DefaultUpdaterConfig()
	}
	if c.Backtest.BuyVariant == 0 {
		c.Backtest.BuyVariant = 1
	}
	if c.Backtest.SellVariant == 0 {
		c.Backtest.SellVariant = 1
	}
	if c.Backtest.OutputDir == "" {
		c.Backtest.OutputDir = "output"
	}
	if c.Backtest.FillRetries == 0 {
		c.Backtest.FillRetries = 3
	}
	if c.Logging.Level == "" {
		c.Logging = *logger.DefaultConfig()
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MEANREV_EXCHANGE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("MEANREV_EXCHANGE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("MEANREV_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("MEANREV_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for obvious mistakes
func (c *Config) Validate() error {
	if c.Data.Window < 2 {
		return fmt.Errorf("data.window must be at least 2, got %d", c.Data.Window)
	}
	if c.Backtest.BuyVariant < 1 || c.Backtest.BuyVariant > 5 {
		return fmt.Errorf("backtest.buy_variant must be 1..5, got %d", c.Backtest.BuyVariant)
	}
	if c.Backtest.SellVariant < 1 || c.Backtest.SellVariant > 5 {
		return fmt.Errorf("backtest.sell_variant must be 1..5, got %d", c.Backtest.SellVariant)
	}
	if c.Backtest.InitialMoney < 0 {
		return fmt.Errorf("backtest.initial_money must not be negative")
	}
	for _, r := range c.Data.Denylist {
		if _, err := parseDay(r.Start); err != nil {
			return fmt.Errorf("denylist start %q: %w", r.Start, err)
		}
		if _, err := parseDay(r.End); err != nil {
			return fmt.Errorf("denylist end %q: %w", r.End, err)
		}
	}
	return nil
}

func parseDay(s string) (int64, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// DenylistRules converts the configured denylist into cache rules
func (c *Config) DenylistRules() kline.Denylist {
	rules := make(kline.Denylist, 0, len(c.Data.Denylist))
	for _, r := range c.Data.Denylist {
		start, err := parseDay(r.Start)
		if err != nil {
			continue
		}
		end, err := parseDay(r.End)
		if err != nil {
			continue
		}
		rules = append(rules, kline.DenyRule{Symbol: r.Symbol, Start: start, End: end})
	}
	return rules
}

// ApplyAllowIncomplete registers the configured incomplete-day
// exemptions on a detail store
func (c *Config) ApplyAllowIncomplete(store *kline.DetailStore) {
	for _, a := range c.Data.AllowIncomplete {
		day, err := parseDay(a.Date)
		if err != nil {
			continue
		}
		store.AllowIncomplete(a.Symbol, day)
	}
}
