package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/algoscript/internal/marketdata"
	"github.com/rxtech-lab/algoscript/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
	dir     string
	noEnv   string
	envKeys []string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.noEnv = filepath.Join(suite.dir, "missing.env")

	// start every test from a clean environment and restore it afterwards
	for _, key := range []string{
		"ALGOSCRIPT_ADDR", "ALGOSCRIPT_LOG_LEVEL", "ALGOSCRIPT_DEFAULT_SYMBOL",
		"ALGOSCRIPT_MARKET_DATA_PROVIDER", "ALGOSCRIPT_MARKET_DATA_INTERVAL", "ALGOSCRIPT_JOURNAL_PATH",
		"ALGOSCRIPT_INITIAL_BALANCE", "ALGOSCRIPT_EXCHANGE_ENABLED",
		"POLYGON_API_KEY", "BINANCE_API_KEY", "BINANCE_SECRET_KEY",
	} {
		suite.T().Setenv(key, "")
		os.Unsetenv(key)
	}
}

func (suite *ConfigTestSuite) write(name, content string) string {
	path := filepath.Join(suite.dir, name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	return path
}

func (suite *ConfigTestSuite) TestDefaultIsValid() {
	cfg := Default()

	suite.NoError(cfg.Validate())
	suite.Equal(":8001", cfg.Server.Addr)
	suite.Equal(10000.0, cfg.Interpreter.InitialBalance)
	suite.Equal("ETHUSD", cfg.Interpreter.DefaultSymbol)
	suite.Equal("synthetic", cfg.MarketData.Provider)
	suite.Equal(2000.0, cfg.MarketData.InitialPrice)
	suite.Equal(100, cfg.MarketData.History)
	suite.Equal("4h", cfg.MarketData.Interval)
	suite.False(cfg.Exchange.Enabled)
}

func (suite *ConfigTestSuite) TestLoadWithoutFile() {
	cfg, err := Load("", suite.noEnv)
	suite.Require().NoError(err)
	suite.Equal(Default(), *cfg)
}

func (suite *ConfigTestSuite) TestLoadYAML() {
	path := suite.write("config.yaml", `
server:
  addr: "127.0.0.1:9000"
  read_header_timeout: 10s
log:
  level: debug
interpreter:
  initial_balance: 2500
  default_events: [NEW_CANDLE, PRICE_CHANGE]
market_data:
  interval: DAILY
  seed: 7
journal:
  path: /tmp/runs.duckdb
`)

	cfg, err := Load(path, suite.noEnv)
	suite.Require().NoError(err)
	suite.Equal("127.0.0.1:9000", cfg.Server.Addr)
	suite.Equal(10*time.Second, cfg.Server.ReadHeaderTimeout)
	suite.Equal("debug", cfg.Log.Level)
	suite.Equal(2500.0, cfg.Interpreter.InitialBalance)
	suite.Equal("ETHUSD", cfg.Interpreter.DefaultSymbol)
	suite.Equal([]string{"NEW_CANDLE", "PRICE_CHANGE"}, cfg.Interpreter.DefaultEvents)
	suite.Equal(int64(7), cfg.MarketData.Seed)
	suite.Equal("synthetic", cfg.MarketData.Provider)
	suite.Equal("/tmp/runs.duckdb", cfg.Journal.Path)

	feed, err := cfg.MarketData.FeedConfig()
	suite.Require().NoError(err)
	suite.Equal(marketdata.IntervalOneDay, feed.Interval)
	suite.Equal(marketdata.ProviderSynthetic, feed.Provider)
	suite.Equal(int64(7), feed.Seed)
}

func (suite *ConfigTestSuite) TestLoadErrors() {
	_, err := Load(filepath.Join(suite.dir, "nope.yaml"), suite.noEnv)
	suite.True(errors.HasCode(err, errors.ErrCodeConfigReadFailed))

	_, err = Load(suite.write("broken.yaml", "server: [unclosed"), suite.noEnv)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = Load(suite.write("provider.yaml", "market_data:\n  provider: kraken\n"), suite.noEnv)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = Load(suite.write("interval.yaml", "market_data:\n  interval: 3h\n"), suite.noEnv)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = Load(suite.write("events.yaml", "interpreter:\n  default_events: [TICK]\n"), suite.noEnv)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = Load(suite.write("polygon.yaml", "market_data:\n  provider: polygon\n"), suite.noEnv)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestExchangeRequiresKeysWhenEnabled() {
	path := suite.write("exchange.yaml", "exchange:\n  enabled: true\n")

	_, err := Load(path, suite.noEnv)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	suite.T().Setenv("BINANCE_API_KEY", "key")
	suite.T().Setenv("BINANCE_SECRET_KEY", "secret")

	cfg, err := Load(path, suite.noEnv)
	suite.Require().NoError(err)
	suite.True(cfg.Exchange.Enabled)

	placer := cfg.Exchange.PlacerConfig()
	suite.Equal("key", placer.APIKey)
	suite.Equal("secret", placer.SecretKey)
	suite.Equal(30, placer.MaxConcurrent)
	suite.Equal(5, placer.MaxRetries)
}

func (suite *ConfigTestSuite) TestEnvOverrides() {
	suite.T().Setenv("ALGOSCRIPT_ADDR", ":7000")
	suite.T().Setenv("ALGOSCRIPT_INITIAL_BALANCE", "123.5")
	suite.T().Setenv("ALGOSCRIPT_MARKET_DATA_PROVIDER", "binance")
	suite.T().Setenv("ALGOSCRIPT_JOURNAL_PATH", "runs.duckdb")

	cfg, err := Load("", suite.noEnv)
	suite.Require().NoError(err)
	suite.Equal(":7000", cfg.Server.Addr)
	suite.Equal(123.5, cfg.Interpreter.InitialBalance)
	suite.Equal("binance", cfg.MarketData.Provider)
	suite.Equal("runs.duckdb", cfg.Journal.Path)

	suite.T().Setenv("ALGOSCRIPT_INITIAL_BALANCE", "lots")

	_, err = Load("", suite.noEnv)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestEnvFileOverlay() {
	envFile := suite.write("test.env", "POLYGON_API_KEY=from-file\nALGOSCRIPT_MARKET_DATA_PROVIDER=polygon\n")

	cfg, err := Load("", envFile)
	suite.Require().NoError(err)
	suite.Equal("polygon", cfg.MarketData.Provider)
	suite.Equal("from-file", cfg.MarketData.PolygonAPIKey)
}

func (suite *ConfigTestSuite) TestSchema() {
	schema, err := Schema()
	suite.Require().NoError(err)
	suite.Contains(schema, `"market_data"`)
	suite.Contains(schema, `"initial_balance"`)
	suite.Contains(schema, `"synthetic"`)
	suite.NotContains(schema, `"$ref"`)
}
