package main

import (
	"io"
	"os"

	"github.com/rxtech-lab/algoscript/internal/config"
	"github.com/rxtech-lab/algoscript/internal/exchange"
	"github.com/rxtech-lab/algoscript/internal/interpreter"
	"github.com/rxtech-lab/algoscript/internal/logger"
	"github.com/rxtech-lab/algoscript/internal/marketdata"
	"github.com/rxtech-lab/algoscript/pkg/errors"
	"github.com/urfave/cli/v3"
)

// app is the configuration-derived wiring shared by the subcommands.
type app struct {
	config *config.Config
	logger *logger.Logger
	feeds  interpreter.FeedFactory
	placer exchange.OrderPlacer
}

// loadApp reads --config and --env-file and builds the logger, feed factory
// and optional order placer. quietLevel is the log level used when neither
// --log-level nor the configuration asks for one.
func loadApp(cmd *cli.Command, quietLevel string) (*app, error) {
	cfg, err := config.Load(cmd.String("config"), cmd.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}

	level := cmd.String("log-level")
	if level == "" {
		level = quietLevel
	}

	if level == "" {
		level = cfg.Log.Level
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid log level %q", level)
	}

	feeds, err := feedFactory(cfg.MarketData)
	if err != nil {
		return nil, err
	}

	a := &app{
		config: cfg,
		logger: log,
		feeds:  feeds,
		placer: nil,
	}

	if cfg.Exchange.Enabled {
		placer, err := exchange.NewBinancePlacer(cfg.Exchange.PlacerConfig(), log)
		if err != nil {
			return nil, err
		}

		a.placer = placer
	}

	return a, nil
}

// feedFactory builds a fresh feed per run from the market data section.
func feedFactory(cfg config.MarketDataConfig) (interpreter.FeedFactory, error) {
	feedConfig, err := cfg.FeedConfig()
	if err != nil {
		return nil, err
	}

	if _, err := marketdata.NewFeed(feedConfig); err != nil {
		return nil, err
	}

	return func(string) (marketdata.Feed, error) {
		return marketdata.NewFeed(feedConfig)
	}, nil
}

func (a *app) interpreterOptions() []interpreter.Option {
	opts := []interpreter.Option{
		interpreter.WithFeedFactory(a.feeds),
		interpreter.WithHistory(a.config.MarketData.History),
		interpreter.WithLogger(a.logger),
	}

	if a.placer != nil {
		opts = append(opts, interpreter.WithOrderPlacer(a.placer))
	}

	return opts
}

// readSource reads the strategy at path, or stdin when path is "-".
func readSource(cmd *cli.Command, path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.ErrCodeMissingParameter, "a strategy file is required")
	}

	var (
		data []byte
		err  error
	)

	if path == "-" {
		data, err = io.ReadAll(cmd.Root().Reader)
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to read strategy %s", path)
	}

	return string(data), nil
}
