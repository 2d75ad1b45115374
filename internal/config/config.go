package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tin.
type Config struct {
	Quote       Quote       `yaml:"quote"`
	Broker      Broker      `yaml:"broker"`
	TradingPost TradingPost `yaml:"trading_post"`
	Alpaca      Alpaca      `yaml:"alpaca"`
	Simulator   Simulator   `yaml:"simulator"`
	Journal     Journal     `yaml:"journal"`
	Server      Server      `yaml:"server"`
	Logging     Logging     `yaml:"logging"`
}

// Quote selects and configures the price-signal source.
type Quote struct {
	Kind    string `yaml:"kind"` // "http" or "alpaca"
	BaseURL string `yaml:"base_url"`
	Feed    string `yaml:"feed"` // alpaca only
}

// Broker selects the brokerage and execution mode.
type Broker struct {
	Kind   string `yaml:"kind"` // "trading-post", "alpaca" or "simulator"
	DryRun bool   `yaml:"dry_run"`
}

// TradingPost holds the trading-post API endpoint and credentials file.
type TradingPost struct {
	BaseURL         string `yaml:"base_url"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Simulator seeds the in-memory paper broker.
type Simulator struct {
	Positions map[string]int64 `yaml:"positions"`
}

// Journal configures where decisions are recorded. An empty SQLitePath
// disables the journal.
type Journal struct {
	SQLitePath string `yaml:"sqlite_path"`
	DataDir    string `yaml:"data_dir"`
}

// Server holds the gRPC listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Quote:       Quote{Kind: "http", BaseURL: "http://stock.octoblu.com/"},
		Broker:      Broker{Kind: "trading-post"},
		TradingPost: TradingPost{BaseURL: "https://trading-post.club", CredentialsFile: "./credentials.json"},
		Server:      Server{Host: "127.0.0.1", GRPCPort: 9090},
		Logging:     Logging{Level: "info", Format: "json"},
	}
}

// Load reads the YAML configuration file at the given path on top of the
// defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields the defaults with
// environment overrides applied.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return cfg, err
}

// Validate checks that the selected quote source and broker are known.
func (c *Config) Validate() error {
	switch c.Quote.Kind {
	case "http", "alpaca":
	default:
		return fmt.Errorf("unknown quote kind %q (want http or alpaca)", c.Quote.Kind)
	}
	switch c.Broker.Kind {
	case "trading-post", "alpaca", "simulator":
	default:
		return fmt.Errorf("unknown broker kind %q (want trading-post, alpaca or simulator)", c.Broker.Kind)
	}
	for ticker, qty := range c.Simulator.Positions {
		if qty < 0 {
			return fmt.Errorf("simulator position %s has negative quantity %d", ticker, qty)
		}
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIN_QUOTE_URL"); v != "" {
		cfg.Quote.BaseURL = v
	}

	if v := os.Getenv("TIN_BROKER"); v != "" {
		cfg.Broker.Kind = v
	}

	if v := os.Getenv("TRADING_POST_URL"); v != "" {
		cfg.TradingPost.BaseURL = v
	}

	if v := os.Getenv("TIN_CREDENTIALS_FILE"); v != "" {
		cfg.TradingPost.CredentialsFile = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Journal.SQLitePath = v
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Journal.DataDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars win over ALPACA_*.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
