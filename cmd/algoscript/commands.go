package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rxtech-lab/algoscript/internal/config"
	"github.com/rxtech-lab/algoscript/internal/interpreter"
	"github.com/rxtech-lab/algoscript/internal/journal"
	"github.com/rxtech-lab/algoscript/internal/marketdata"
	"github.com/rxtech-lab/algoscript/internal/server"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/internal/version"
	"github.com/rxtech-lab/algoscript/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const quietLogLevel = "warn"

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "algoscript",
		Usage:   "Validate, simulate and serve AlgoScript trading strategies",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				Sources: cli.EnvVars("ALGOSCRIPT_CONFIG"),
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Env files loaded before the environment overrides (default .env)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			validateCommand(),
			runCommand(),
			serveCommand(),
			exampleCommand(),
			schemaCommand(),
			marketCommand(),
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a strategy for lexical and syntax errors",
		ArgsUsage: "<file|->",
		Action: func(_ context.Context, cmd *cli.Command) error {
			source, err := readSource(cmd, cmd.Args().First())
			if err != nil {
				return err
			}

			result := interpreter.New().Validate(source)
			out := cmd.Root().Writer

			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}

			if !result.Valid {
				for _, e := range result.Errors {
					fmt.Fprintf(out, "error: %s\n", e)
				}

				return errors.Newf(errors.ErrCodeValidationFailed, "strategy is invalid: %d error(s)", len(result.Errors))
			}

			fmt.Fprintf(out, "Strategy is valid (%d handler(s))\n", len(result.AST.EventHandlers))

			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Simulate a strategy over a sequence of events",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:  "balance",
				Usage: "Initial balance (defaults to interpreter.initial_balance)",
			},
			&cli.StringSliceFlag{
				Name:    "events",
				Aliases: []string{"e"},
				Usage:   "Events to simulate in order (defaults to interpreter.default_events)",
			},
			&cli.StringFlag{
				Name:  "symbol",
				Usage: "Override the strategy symbol",
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "DuckDB file to record the run in (defaults to journal.path)",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show a progress bar on stderr",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the results as JSON",
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	source, err := readSource(cmd, cmd.Args().First())
	if err != nil {
		return err
	}

	a, err := loadApp(cmd, quietLogLevel)
	if err != nil {
		return err
	}

	defer func() { _ = a.logger.Sync() }()

	balance := a.config.Interpreter.InitialBalance
	if cmd.IsSet("balance") {
		balance = cmd.Float("balance")
	}

	events := a.config.Interpreter.DefaultEvents
	if cmd.IsSet("events") {
		events = splitEvents(cmd.StringSlice("events"))
	}

	opts := a.interpreterOptions()

	if cmd.Bool("progress") {
		bar := progressbar.NewOptions(len(events),
			progressbar.OptionSetWriter(cmd.Root().ErrWriter),
			progressbar.OptionSetDescription("simulating"),
			progressbar.OptionShowCount(),
		)
		defer func() { _ = bar.Finish() }()

		opts = append(opts, interpreter.WithEventObserver(func(string, types.ExecutionResult) {
			_ = bar.Add(1)
		}))
	}

	request := interpreter.Request{Code: source, Symbol: cmd.String("symbol"), InitialBalance: balance}
	results := interpreter.New(opts...).ExecuteWithEvents(ctx, request, events)
	if len(results) == 0 {
		return errors.New(errors.ErrCodeInvalidParameter, "No results")
	}

	journalPath := a.config.Journal.Path
	if cmd.IsSet("journal") {
		journalPath = cmd.String("journal")
	}

	if journalPath != "" {
		if err := recordRun(ctx, journalPath, a, results); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return writeJSON(cmd.Root().Writer, results)
	}

	printResults(cmd.Root().Writer, events, results)

	if last := results[len(results)-1]; !last.Success {
		return errors.New(errors.ErrCodeInternal, last.Error)
	}

	return nil
}

// splitEvents accepts both repeated flags and comma-separated lists.
func splitEvents(values []string) []string {
	events := []string{}

	for _, value := range values {
		for _, event := range strings.Split(value, ",") {
			if event = strings.TrimSpace(event); event != "" {
				events = append(events, strings.ToUpper(event))
			}
		}
	}

	return events
}

func recordRun(ctx context.Context, path string, a *app, results []types.ExecutionResult) error {
	state := results[len(results)-1].TradingState
	if state == nil {
		a.logger.Warn("Run produced no trading state, skipping journal")

		return nil
	}

	j, err := journal.Open(path, a.logger)
	if err != nil {
		return err
	}
	defer j.Close()

	if err := j.RecordRun(ctx, state.ID, state.Symbol, results); err != nil {
		return err
	}

	a.logger.Info("Run journaled", zap.String("run_id", state.ID), zap.String("path", path))

	return nil
}

func printResults(out io.Writer, events []string, results []types.ExecutionResult) {
	for i, result := range results {
		if i < len(events) {
			fmt.Fprintf(out, "#%d %s success=%t\n", i+1, events[i], result.Success)
		}

		for _, line := range result.Logs {
			fmt.Fprintln(out, line)
		}

		if result.Error != "" {
			fmt.Fprintf(out, "Error: %s\n", result.Error)
		}
	}

	last := results[len(results)-1]
	if last.TradingState == nil {
		return
	}

	state := last.TradingState
	fmt.Fprintf(out, "Run %s: balance $%.2f, position %.4f, %d order(s)\n",
		state.ID, state.Balance, state.PositionSize, len(state.Orders))
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.addr)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := loadApp(cmd, "")
			if err != nil {
				return err
			}

			defer func() { _ = a.logger.Sync() }()

			addr := a.config.Server.Addr
			if cmd.IsSet("addr") {
				addr = cmd.String("addr")
			}

			opts := []server.Option{
				server.WithFeedFactory(a.feeds),
				server.WithHistory(a.config.MarketData.History),
				server.WithLogger(a.logger),
				server.WithInitialBalance(a.config.Interpreter.InitialBalance),
				server.WithDefaultEvents(a.config.Interpreter.DefaultEvents),
			}

			if a.config.Journal.Path != "" {
				j, err := journal.Open(a.config.Journal.Path, a.logger)
				if err != nil {
					return err
				}
				defer j.Close()

				opts = append(opts, server.WithJournal(j))
			}

			srv := server.New(interpreter.New(a.interpreterOptions()...), opts...)

			return srv.ListenAndServe(ctx, addr, a.config.Server.ReadHeaderTimeout)
		},
	}
}

func exampleCommand() *cli.Command {
	return &cli.Command{
		Name:  "example",
		Usage: "Print the example strategy",
		Action: func(_ context.Context, cmd *cli.Command) error {
			fmt.Fprintln(cmd.Root().Writer, interpreter.New().ExampleCode())

			return nil
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the configuration file",
		Action: func(_ context.Context, cmd *cli.Command) error {
			schema, err := config.Schema()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.Root().Writer, schema)

			return nil
		},
	}
}

func marketCommand() *cli.Command {
	return &cli.Command{
		Name:      "market",
		Usage:     "Print the indicator snapshot of a symbol",
		ArgsUsage: "<symbol>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			symbol := strings.ToUpper(cmd.Args().First())
			if symbol == "" {
				return errors.New(errors.ErrCodeMissingParameter, "a symbol is required")
			}

			a, err := loadApp(cmd, quietLogLevel)
			if err != nil {
				return err
			}

			feed, err := a.feeds(symbol)
			if err != nil {
				return err
			}

			engine, err := marketdata.NewEngine(ctx, symbol, feed,
				marketdata.WithHistory(a.config.MarketData.History),
				marketdata.WithEngineLogger(a.logger),
			)
			if err != nil {
				return err
			}

			snapshot, err := engine.Snapshot()
			if err != nil {
				return err
			}

			return writeJSON(cmd.Root().Writer, snapshot)
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to encode output", err)
	}

	return nil
}
