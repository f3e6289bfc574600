package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher retrieves the raw search page for one query.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (string, error)
}

type CollectorOptions struct {
	Timeout time.Duration
	// EarlyStop ends the plan once a single query yields more than this many candidates.
	EarlyStop int
	Extract   ExtractOptions
}

// Collector runs a query plan against a Fetcher, one attempt per query.
type Collector struct {
	fetcher Fetcher
	opts    CollectorOptions
}

func NewCollector(fetcher Fetcher, opts CollectorOptions) *Collector {
	return &Collector{fetcher: fetcher, opts: opts}
}

// FetchCandidates returns candidates in plan order. A failed query is logged
// and the next one is tried; posts already seen under an earlier query are dropped.
func (c *Collector) FetchCandidates(ctx context.Context, logger zerolog.Logger, queries []Query) []CandidatePost {
	out := make([]CandidatePost, 0, 16)
	seen := map[string]struct{}{}

	for _, query := range queries {
		if ctx.Err() != nil {
			break
		}

		extracted, err := c.fetchOne(ctx, query)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("query", query.Text).
				Msg("query fetch failed")
			continue
		}

		for _, candidate := range extracted {
			if _, exists := seen[candidate.Text]; exists {
				continue
			}
			seen[candidate.Text] = struct{}{}
			out = append(out, candidate)
		}

		logger.Debug().
			Str("query", query.Text).
			Int("candidates", len(extracted)).
			Msg("query fetched")

		if len(extracted) > c.opts.EarlyStop {
			break
		}
	}

	return out
}

func (c *Collector) fetchOne(ctx context.Context, query Query) ([]CandidatePost, error) {
	fetchCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	document, err := c.fetcher.Fetch(fetchCtx, query.Text)
	if err != nil {
		return nil, err
	}
	return ExtractCandidates(document, query, c.opts.Extract)
}
