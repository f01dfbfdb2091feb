// Command enviroctl runs maintenance and query commands against the
// telemetry database without starting the service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odlevakp/enviro-pi/internal/config"
	"github.com/odlevakp/enviro-pi/internal/db"
	"github.com/odlevakp/enviro-pi/internal/logging"
	"github.com/odlevakp/enviro-pi/internal/migrate"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/aggregation"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/repository"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

const appName = "enviroctl"

var version = "dev"

const usage = `usage: enviroctl <command> [args]
  migrate               apply pending schema migrations and verify the table
  migrate status        list pending migrations
  stats <day|week|month>   print window statistics as JSON
  series <day|week|month>  print chart series as JSON
`

var errUsage = errors.New("usage")

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, version, appName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	conn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	store := repository.NewRepository(conn, repository.Options{
		QueryTimeout: cfg.QueryTimeout,
		RetryMax:     cfg.StoreRetryMax,
		Logger:       logger,
	})
	engine := aggregation.NewEngine(store, aggregation.Options{Location: cfg.DisplayLocation})

	switch args[0] {
	case "migrate":
		if len(args) > 1 && args[1] == "status" {
			pending, err := migrate.Pending(ctx, conn)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(out, "no pending migrations")
				return nil
			}
			for _, v := range pending {
				fmt.Fprintln(out, "pending", v)
			}
			return nil
		}
		if err := store.Initialize(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
		return nil

	case "stats", "series":
		if len(args) != 2 {
			return errUsage
		}
		window, err := types.ParseWindow(args[1])
		if err != nil {
			return err
		}
		var result any
		if args[0] == "stats" {
			result, err = engine.BuildStatistics(ctx, window)
		} else {
			result, err = engine.BuildSeries(ctx, window)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)

	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}
