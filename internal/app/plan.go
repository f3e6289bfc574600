package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/portalerts/internal/cli"
	"horse.fit/portalerts/internal/db"
	"horse.fit/portalerts/internal/monitor"
	"horse.fit/portalerts/internal/scraper"
)

type planRow struct {
	Order      int    `json:"order"`
	Authorship string `json:"authorship"`
	Query      string `json:"query"`
	FetchURL   string `json:"fetch_url"`
}

func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	entityID := fs.Int64("entity-id", 0, "Entity id")
	entityUUID := fs.String("entity-uuid", "", "Entity UUID (alternative to --entity-id)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if (*entityID > 0) == (strings.TrimSpace(*entityUUID) != "") {
		fmt.Fprintln(os.Stderr, "exactly one of --entity-id or --entity-uuid is required")
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

	var row *db.Entity
	if *entityID > 0 {
		row, err = pool.GetEntityByID(ctx, *entityID)
	} else {
		row, err = pool.GetEntityByUUID(ctx, *entityUUID)
	}
	if err != nil {
		if db.IsNoRows(err) {
			fmt.Fprintln(os.Stderr, "Entity not found")
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to load entity: %v\n", err)
		return 1
	}

	client := scraper.NewClient(scraper.Options{
		NitterBaseURL:   cfg.NitterBaseURL,
		PublicSearchURL: cfg.PublicSearchURL,
	})
	rows := buildPlanRows(monitor.EntityFromRow(*row), client)

	if outputFormat == outputFormatJSON {
		if err := printJSON(rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if len(rows) == 0 {
		fmt.Println("no queries: entity has no handle, symbol or name")
		return 0
	}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{strconv.Itoa(r.Order), r.Authorship, r.Query, r.FetchURL})
	}
	if err := writeTable([]string{"#", "authorship", "query", "fetch_url"}, tableRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render plan: %v\n", err)
		return 1
	}
	return 0
}

func buildPlanRows(entity monitor.Entity, client *scraper.Client) []planRow {
	queries := monitor.PlanQueries(entity)
	rows := make([]planRow, 0, len(queries))
	for i, q := range queries {
		rows = append(rows, planRow{
			Order:      i + 1,
			Authorship: q.Authorship.String(),
			Query:      q.Text,
			FetchURL:   client.TargetURL(q.Text),
		})
	}
	return rows
}
