// Package config loads the service configuration from YAML, a .env overlay
// and the process environment.
package config

import (
	"encoding/json"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/algoscript/internal/exchange"
	"github.com/rxtech-lab/algoscript/internal/marketdata"
	"github.com/rxtech-lab/algoscript/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server" jsonschema:"title=Server,description=HTTP API settings"`
	Log         LogConfig         `yaml:"log" json:"log" jsonschema:"title=Log"`
	Interpreter InterpreterConfig `yaml:"interpreter" json:"interpreter" jsonschema:"title=Interpreter,description=Defaults applied to execution requests"`
	MarketData  MarketDataConfig  `yaml:"market_data" json:"market_data" jsonschema:"title=Market Data,description=Where run engines load candles from"`
	Exchange    ExchangeConfig    `yaml:"exchange" json:"exchange" jsonschema:"title=Exchange,description=Optional live order routing"`
	Journal     JournalConfig     `yaml:"journal" json:"journal" jsonschema:"title=Journal,description=Run journal storage"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr" json:"addr" validate:"required" jsonschema:"title=Address,description=Listen address,default=:8001"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout" validate:"gte=0" jsonschema:"title=Read Header Timeout,description=Go duration string such as 5s"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`
}

type InterpreterConfig struct {
	InitialBalance float64  `yaml:"initial_balance" json:"initial_balance" validate:"gt=0" jsonschema:"title=Initial Balance,description=Cash a run starts with when the request gives none,minimum=0"`
	DefaultSymbol  string   `yaml:"default_symbol" json:"default_symbol" validate:"required" jsonschema:"title=Default Symbol,default=ETHUSD"`
	DefaultEvents  []string `yaml:"default_events" json:"default_events" validate:"min=1,dive,oneof=NEW_CANDLE ORDER_FILLED PRICE_CHANGE" jsonschema:"title=Default Events,description=Events simulated when a request lists none"`
}

type MarketDataConfig struct {
	Provider       string  `yaml:"provider" json:"provider" validate:"oneof=synthetic binance polygon" jsonschema:"title=Provider,enum=synthetic,enum=binance,enum=polygon,default=synthetic"`
	InitialPrice   float64 `yaml:"initial_price" json:"initial_price" validate:"gt=0" jsonschema:"title=Initial Price,description=Starting price of the synthetic walk"`
	History        int     `yaml:"history" json:"history" validate:"gt=0" jsonschema:"title=History,description=Candles loaded per engine,default=100"`
	Interval       string  `yaml:"interval" json:"interval" validate:"required" jsonschema:"title=Interval,description=Candle interval such as 4h or 1d,default=4h"`
	Seed           int64   `yaml:"seed" json:"seed" jsonschema:"title=Seed,description=Synthetic walk seed; 0 seeds from the clock"`
	PolygonAPIKey  string  `yaml:"polygon_api_key" json:"polygon_api_key" jsonschema:"title=Polygon API Key"`
	BinanceBaseURL string  `yaml:"binance_base_url" json:"binance_base_url" jsonschema:"title=Binance Base URL"`
}

type ExchangeConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled" jsonschema:"title=Enabled,description=Route BUY and SELL to the exchange instead of simulated fills"`
	Provider      string `yaml:"provider" json:"provider" validate:"oneof=binance" jsonschema:"title=Provider,enum=binance,default=binance"`
	APIKey        string `yaml:"api_key" json:"api_key" validate:"required_if=Enabled true" jsonschema:"title=API Key"`
	SecretKey     string `yaml:"secret_key" json:"secret_key" validate:"required_if=Enabled true" jsonschema:"title=Secret Key"`
	BaseURL       string `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL"`
	UseTestnet    bool   `yaml:"use_testnet" json:"use_testnet" jsonschema:"title=Use Testnet"`
	MaxConcurrent int    `yaml:"max_concurrent" json:"max_concurrent" validate:"gte=1" jsonschema:"title=Max Concurrent,description=In-flight order requests,default=30"`
	MaxRetries    int    `yaml:"max_retries" json:"max_retries" validate:"gte=0" jsonschema:"title=Max Retries,description=Retries after a rate-limit response,default=5"`
}

type JournalConfig struct {
	// Path is the DuckDB file. Empty disables the journal.
	Path string `yaml:"path" json:"path" jsonschema:"title=Path,description=DuckDB file; empty disables journaling"`
}

// Default returns a configuration that runs entirely offline.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8001",
			ReadHeaderTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Interpreter: InterpreterConfig{
			InitialBalance: 10000,
			DefaultSymbol:  "ETHUSD",
			DefaultEvents:  []string{"NEW_CANDLE"},
		},
		MarketData: MarketDataConfig{
			Provider:     string(marketdata.ProviderSynthetic),
			InitialPrice: 2000,
			History:      marketdata.DefaultHistory,
			Interval:     string(marketdata.IntervalFourHours),
		},
		Exchange: ExchangeConfig{
			Provider:      "binance",
			MaxConcurrent: exchange.DefaultMaxConcurrent,
			MaxRetries:    exchange.DefaultMaxRetries,
		},
		Journal: JournalConfig{Path: ""},
	}
}

// Load merges the YAML file at path over Default, overlays envFiles (".env"
// when none are given; missing files are ignored) and the environment, and
// validates the result. An empty path skips the YAML step.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeConfigReadFailed, err, "failed to read config %s", path)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config %s", path)
		}
	}

	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(errors.ErrCodeConfigReadFailed, "failed to load env file", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Server.Addr, "ALGOSCRIPT_ADDR")
	setString(&cfg.Log.Level, "ALGOSCRIPT_LOG_LEVEL")
	setString(&cfg.Interpreter.DefaultSymbol, "ALGOSCRIPT_DEFAULT_SYMBOL")
	setString(&cfg.MarketData.Provider, "ALGOSCRIPT_MARKET_DATA_PROVIDER")
	setString(&cfg.MarketData.Interval, "ALGOSCRIPT_MARKET_DATA_INTERVAL")
	setString(&cfg.MarketData.PolygonAPIKey, "POLYGON_API_KEY")
	setString(&cfg.Exchange.APIKey, "BINANCE_API_KEY")
	setString(&cfg.Exchange.SecretKey, "BINANCE_SECRET_KEY")
	setString(&cfg.Journal.Path, "ALGOSCRIPT_JOURNAL_PATH")

	if v := os.Getenv("ALGOSCRIPT_INITIAL_BALANCE"); v != "" {
		balance, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid ALGOSCRIPT_INITIAL_BALANCE %q", v)
		}

		cfg.Interpreter.InitialBalance = balance
	}

	if v := os.Getenv("ALGOSCRIPT_EXCHANGE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid ALGOSCRIPT_EXCHANGE_ENABLED %q", v)
		}

		cfg.Exchange.Enabled = enabled
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if _, err := marketdata.ParseInterval(c.MarketData.Interval); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid market_data.interval", err)
	}

	if c.MarketData.Provider == string(marketdata.ProviderPolygon) && c.MarketData.PolygonAPIKey == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "market_data.polygon_api_key is required for the polygon provider")
	}

	return nil
}

// FeedConfig converts the market data section for marketdata.NewFeed.
func (c MarketDataConfig) FeedConfig() (marketdata.FeedConfig, error) {
	interval, err := marketdata.ParseInterval(c.Interval)
	if err != nil {
		return marketdata.FeedConfig{}, err
	}

	return marketdata.FeedConfig{
		Provider:       marketdata.Provider(c.Provider),
		Interval:       interval,
		InitialPrice:   c.InitialPrice,
		Seed:           c.Seed,
		PolygonAPIKey:  c.PolygonAPIKey,
		BinanceBaseURL: c.BinanceBaseURL,
	}, nil
}

// PlacerConfig converts the exchange section for exchange.NewBinancePlacer.
func (c ExchangeConfig) PlacerConfig() exchange.BinancePlacerConfig {
	return exchange.BinancePlacerConfig{
		APIKey:         c.APIKey,
		SecretKey:      c.SecretKey,
		BaseURL:        c.BaseURL,
		UseTestnet:     c.UseTestnet,
		MaxConcurrent:  c.MaxConcurrent,
		MaxRetries:     c.MaxRetries,
		InitialBackoff: 0,
	}
}

// Schema renders the JSON schema of Config.
func Schema() (string, error) {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}

	schemaBytes, err := json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, "failed to render config schema", err)
	}

	return string(schemaBytes), nil
}
