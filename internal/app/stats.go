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
	"horse.fit/portalerts/internal/globaltime"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, _, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	dayStart, dayEnd := globaltime.Today()
	stats, err := pool.QueryStats(ctx, dayStart, dayEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	count := func(v int64) string { return strconv.FormatInt(v, 10) }
	rows := [][]string{
		{"entities", count(stats.Totals.Entities)},
		{"active_entities", count(stats.Totals.ActiveEntities)},
		{"entities_never_checked", count(stats.Throughput.EntitiesNeverChecked)},
		{"scored_posts", count(stats.Totals.ScoredPosts)},
		{"active_subscribers", count(stats.Totals.ActiveSubscribers)},
		{"active_subscriptions", count(stats.Totals.ActiveSubscriptions)},
		{"posts_stored_today", count(stats.Throughput.PostsStoredToday)},
		{"notifications_sent_today", count(stats.Throughput.NotificationsSentToday)},
		{"notifications_failed_today", count(stats.Throughput.NotificationsFailed)},
	}
	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stats table: %v\n", err)
		return 1
	}

	if len(stats.Categories) == 0 {
		return 0
	}
	fmt.Println()
	categoryRows := make([][]string, 0, len(stats.Categories))
	for _, row := range stats.Categories {
		categoryRows = append(categoryRows, []string{row.Category, count(row.Posts)})
	}
	if err := writeTable([]string{"category", "posts"}, categoryRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render category table: %v\n", err)
		return 1
	}
	return 0
}
