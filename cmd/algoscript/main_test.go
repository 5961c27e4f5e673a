package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rxtech-lab/algoscript/internal/config"
	"github.com/rxtech-lab/algoscript/internal/journal"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/pkg/errors"
	"github.com/stretchr/testify/suite"
)

const logStrategy = `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    LOG "hello"
END`

type CommandTestSuite struct {
	suite.Suite
	dir string
	out *bytes.Buffer
}

func TestCommandSuite(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}

func (suite *CommandTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.out = &bytes.Buffer{}
}

func (suite *CommandTestSuite) writeFile(name, content string) string {
	path := filepath.Join(suite.dir, name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	return path
}

func (suite *CommandTestSuite) run(stdin string, args ...string) error {
	cmd := newCommand()
	cmd.Writer = suite.out
	cmd.ErrWriter = io.Discard
	cmd.Reader = strings.NewReader(stdin)

	missingEnv := filepath.Join(suite.dir, "missing.env")

	return cmd.Run(context.Background(), append([]string{"algoscript", "--env-file", missingEnv}, args...))
}

func (suite *CommandTestSuite) TestValidate() {
	path := suite.writeFile("strategy.algo", logStrategy)

	suite.Require().NoError(suite.run("", "validate", path))
	suite.Equal("Strategy is valid (1 handler(s))\n", suite.out.String())
}

func (suite *CommandTestSuite) TestValidateReportsErrors() {
	path := suite.writeFile("broken.algo", "SYMBOL \"ETHUSD\" TIMEFRAME \"4H\"\n@")

	err := suite.run("", "validate", path)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeValidationFailed, errors.GetCode(err))
	suite.Contains(suite.out.String(), "error: Unknown token '@' at line 2, column 1")
}

func (suite *CommandTestSuite) TestValidateFromStdin() {
	suite.Require().NoError(suite.run(logStrategy, "validate", "-"))
	suite.Contains(suite.out.String(), "Strategy is valid")
}

func (suite *CommandTestSuite) TestValidateRequiresFile() {
	err := suite.run("", "validate")
	suite.Equal(errors.ErrCodeMissingParameter, errors.GetCode(err))
}

func (suite *CommandTestSuite) TestRun() {
	path := suite.writeFile("strategy.algo", logStrategy)

	suite.Require().NoError(suite.run("", "run", "--events", "new_candle,PRICE_CHANGE", path))

	out := suite.out.String()
	suite.Contains(out, "#1 NEW_CANDLE success=true")
	suite.Contains(out, "#2 PRICE_CHANGE success=true")
	suite.Contains(out, "STRATEGY LOG: hello")
	suite.Contains(out, "balance $10000.00, position 0.0000, 0 order(s)")
}

func (suite *CommandTestSuite) TestRunJSONWithBalance() {
	path := suite.writeFile("strategy.algo", logStrategy)

	suite.Require().NoError(suite.run("", "run", "--balance", "2500", "--json", path))

	var results []struct {
		Success      bool `json:"success"`
		TradingState struct {
			Balance float64 `json:"balance"`
		} `json:"trading_state"`
	}
	suite.Require().NoError(json.Unmarshal(suite.out.Bytes(), &results))
	suite.Require().Len(results, 1)
	suite.True(results[0].Success)
	suite.Equal(2500.0, results[0].TradingState.Balance)
}

func (suite *CommandTestSuite) TestRunFailsOnUnknownEvent() {
	path := suite.writeFile("strategy.algo", logStrategy)

	err := suite.run("", "run", "--events", "NEW_CANDLE,BOGUS", path)
	suite.Require().Error(err)
	suite.Contains(err.Error(), "Unknown event type: BOGUS")
	suite.Contains(suite.out.String(), "Error: Unknown event type: BOGUS")
}

func (suite *CommandTestSuite) TestRunJournals() {
	path := suite.writeFile("strategy.algo", logStrategy)
	journalPath := filepath.Join(suite.dir, "runs.duckdb")

	suite.Require().NoError(suite.run("", "run", "--journal", journalPath, "--json", "--events", "NEW_CANDLE,NEW_CANDLE", path))

	var results []types.ExecutionResult
	suite.Require().NoError(json.Unmarshal(suite.out.Bytes(), &results))
	suite.Require().Len(results, 2)

	j, err := journal.Open(journalPath, nil)
	suite.Require().NoError(err)

	defer j.Close()

	run, err := j.Run(context.Background(), results[1].TradingState.ID)
	suite.Require().NoError(err)
	suite.Equal("ETHUSD", run.Symbol)
	suite.Equal(2, run.Events)
	suite.True(run.Success)
}

func (suite *CommandTestSuite) TestRunUsesConfigFile() {
	path := suite.writeFile("strategy.algo", logStrategy)
	cfg := suite.writeFile("config.yaml", `
interpreter:
  initial_balance: 750
  default_events: [PRICE_CHANGE]
market_data:
  seed: 7
`)

	suite.Require().NoError(suite.run("", "--config", cfg, "run", path))

	out := suite.out.String()
	suite.Contains(out, "#1 PRICE_CHANGE success=true")
	suite.Contains(out, "No handlers found for event: PRICE_CHANGE")
	suite.Contains(out, "balance $750.00")
}

func (suite *CommandTestSuite) TestExample() {
	suite.Require().NoError(suite.run("", "example"))
	suite.True(strings.HasPrefix(suite.out.String(), `SYMBOL "ETHUSD" TIMEFRAME "4H"`))
}

func (suite *CommandTestSuite) TestSchema() {
	suite.Require().NoError(suite.run("", "schema"))

	var schema map[string]any
	suite.Require().NoError(json.Unmarshal(suite.out.Bytes(), &schema))
	suite.Contains(schema["properties"], "market_data")
}

func (suite *CommandTestSuite) TestMarket() {
	suite.Require().NoError(suite.run("", "market", "ethusd"))

	var snapshot types.MarketSnapshot
	suite.Require().NoError(json.Unmarshal(suite.out.Bytes(), &snapshot))
	suite.Equal("ETHUSD", snapshot.Symbol)
	suite.Greater(snapshot.CurrentPrice, 0.0)
}

func (suite *CommandTestSuite) TestMarketRequiresSymbol() {
	err := suite.run("", "market")
	suite.Equal(errors.ErrCodeMissingParameter, errors.GetCode(err))
}

func (suite *CommandTestSuite) TestSplitEvents() {
	suite.Equal([]string{"NEW_CANDLE", "PRICE_CHANGE", "ORDER_FILLED"},
		splitEvents([]string{"new_candle, price_change", "", "ORDER_FILLED"}))
	suite.Empty(splitEvents(nil))
}

func (suite *CommandTestSuite) TestFeedFactoryRejectsUnknownProvider() {
	cfg := config.Default().MarketData
	cfg.Provider = "bogus"

	_, err := feedFactory(cfg)
	suite.Equal(errors.ErrCodeInvalidProvider, errors.GetCode(err))
}
