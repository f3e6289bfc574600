package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"horse.fit/portalerts/internal/cli"
	"horse.fit/portalerts/internal/db"
)

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "monitor does not accept positional arguments")
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "--timeout must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("monitor command failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	rt, err := buildMonitor(ctx, cfg, logger, pool)
	if err != nil {
		logger.Error().Err(err).Msg("monitor command failed to initialize")
		fmt.Fprintf(os.Stderr, "Failed to initialize monitor: %v\n", err)
		return 1
	}
	defer rt.Close()

	summary, err := rt.service.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("monitor run failed")
		fmt.Fprintf(os.Stderr, "Monitor run failed: %v\n", err)
		return 1
	}

	// A failed entity selection still prints the summary but exits non-zero for cron.
	exitCode := 0
	if summary.SelectionFailed {
		exitCode = 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return exitCode
	}

	rows := [][]string{
		{"entities_processed", strconv.Itoa(summary.EntitiesProcessed)},
		{"entities_failed", strconv.Itoa(summary.EntitiesFailed)},
		{"entities_skipped", strconv.Itoa(summary.EntitiesSkipped)},
		{"posts_found", strconv.Itoa(summary.PostsFound)},
		{"posts_stored", strconv.Itoa(summary.PostsStored)},
		{"notifications_sent", strconv.Itoa(summary.NotificationsSent)},
		{"selection_failed", strconv.FormatBool(summary.SelectionFailed)},
	}
	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render summary: %v\n", err)
		return 1
	}
	return exitCode
}
