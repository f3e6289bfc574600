package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"horse.fit/portalerts/internal/classifier"
	"horse.fit/portalerts/internal/cli"
	"horse.fit/portalerts/internal/config"
	"horse.fit/portalerts/internal/db"
	"horse.fit/portalerts/internal/lease"
	"horse.fit/portalerts/internal/logging"
	"horse.fit/portalerts/internal/messenger"
	"horse.fit/portalerts/internal/monitor"
	"horse.fit/portalerts/internal/scraper"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// monitorRuntime holds the pipeline and the clients it owns.
type monitorRuntime struct {
	service  *monitor.Service
	telegram *messenger.Telegram
	closers  []func() error
}

func (r *monitorRuntime) Close() {
	if r == nil {
		return
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

func buildMonitor(ctx context.Context, cfg *config.Config, logger zerolog.Logger, pool *db.Pool) (*monitorRuntime, error) {
	rt := &monitorRuntime{}

	registry, err := classifier.NewRegistryFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build classifier providers: %w", err)
	}
	if len(registry.ProviderNames()) == 0 {
		logger.Warn().Msg("no AI provider API key configured; every post gets the fallback verdict")
	}

	fetcher := scraper.NewClient(scraper.Options{
		APIKey:          cfg.ScraperAPIKey,
		Endpoint:        cfg.ScraperEndpoint,
		NitterBaseURL:   cfg.NitterBaseURL,
		PublicSearchURL: cfg.PublicSearchURL,
		Timeout:         cfg.FetchTimeout,
	})

	var leaser lease.Leaser = lease.NewPostgres(pool)
	if cfg.LeaseBackendName() == "redis" {
		redisLeaser, err := lease.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect lease backend: %w", err)
		}
		rt.closers = append(rt.closers, redisLeaser.Close)
		leaser = redisLeaser
	}

	deps := monitor.Dependencies{
		Store:      pool,
		Fetcher:    fetcher,
		Classifier: classifier.New(registry, registry.DefaultProvider(), cfg.AITimeout, logger),
		Leaser:     leaser,
		Links:      fetcher,
	}

	if strings.TrimSpace(cfg.TelegramBotToken) != "" {
		telegram, err := messenger.NewTelegram(messenger.TelegramOptions{
			Token:       cfg.TelegramBotToken,
			APIEndpoint: cfg.TelegramAPIEndpoint,
			Timeout:     cfg.SendTimeout,
		}, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.telegram = telegram
		deps.Sender = telegram
	} else {
		logger.Warn().Msg("TELEGRAM_BOT_TOKEN is not set; posts are stored without notifications")
	}

	rt.service = monitor.NewService(deps, monitorOptions(cfg), logger)
	return rt, nil
}

func monitorOptions(cfg *config.Config) monitor.Options {
	return monitor.Options{
		BatchSize:          cfg.MonitorBatchSize,
		Workers:            cfg.MonitorWorkers,
		FetchTimeout:       cfg.FetchTimeout,
		SendTimeout:        cfg.SendTimeout,
		SendRatePerSec:     cfg.TelegramRatePerSec,
		EarlyStopThreshold: cfg.EarlyStopThreshold,
		MaxCandidates:      cfg.MaxCandidates,
		MaxPostsPerQuery:   cfg.MaxPostsPerQuery,
		MinPostLength:      cfg.MinPostLength,
		LeaseTTL:           cfg.LeaseTTL,
	}
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}
