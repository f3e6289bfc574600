package app

import (
	"strings"
	"testing"
	"time"

	"horse.fit/portalerts/internal/config"
	"horse.fit/portalerts/internal/monitor"
	"horse.fit/portalerts/internal/scraper"
)

func TestRunUnknownCommand(t *testing.T) {
	t.Parallel()

	if code := Run([]string{"ingest"}); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if code := Run(nil); code != 2 {
		t.Fatalf("expected exit code 2 without args, got %d", code)
	}
}

func TestParseOutputFormat(t *testing.T) {
	t.Parallel()

	if got, err := parseOutputFormat(" JSON ", outputFormatTable); err != nil || got != outputFormatJSON {
		t.Fatalf("expected json, got %q (%v)", got, err)
	}
	if got, err := parseOutputFormat("", outputFormatTable); err != nil || got != outputFormatTable {
		t.Fatalf("expected default table, got %q (%v)", got, err)
	}
	if _, err := parseOutputFormat("yaml", outputFormatTable); err == nil {
		t.Fatalf("expected error for yaml")
	}
}

func TestBuildPlanRows(t *testing.T) {
	t.Parallel()

	client := scraper.NewClient(scraper.Options{NitterBaseURL: "https://nitter.example"})
	rows := buildPlanRows(monitor.Entity{Name: "Kaspa", Symbol: "kas", Handle: "KaspaCurrency"}, client)

	if len(rows) != 3 {
		t.Fatalf("expected 3 queries, got %d", len(rows))
	}
	if rows[0].Order != 1 || rows[0].Authorship != "official" || rows[0].Query != "from:KaspaCurrency" {
		t.Fatalf("unexpected first row: %#v", rows[0])
	}
	if rows[1].Query != "$KAS" || rows[2].Query != "Kaspa" {
		t.Fatalf("unexpected query order: %#v", rows)
	}
	if !strings.HasPrefix(rows[2].FetchURL, "https://nitter.example/search?") {
		t.Fatalf("unexpected fetch url: %s", rows[2].FetchURL)
	}
}

func TestMonitorOptionsFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		MonitorBatchSize:   7,
		MonitorWorkers:     2,
		FetchTimeout:       15 * time.Second,
		SendTimeout:        4 * time.Second,
		TelegramRatePerSec: 10,
		EarlyStopThreshold: 3,
		MaxCandidates:      12,
		MaxPostsPerQuery:   6,
		MinPostLength:      25,
		LeaseTTL:           time.Minute,
	}
	opts := monitorOptions(cfg)
	if opts.BatchSize != 7 || opts.Workers != 2 || opts.EarlyStopThreshold != 3 || opts.MaxCandidates != 12 {
		t.Fatalf("unexpected options: %#v", opts)
	}
	if opts.SendRatePerSec != 10 || opts.MinPostLength != 25 || opts.LeaseTTL != time.Minute {
		t.Fatalf("unexpected options: %#v", opts)
	}
}
