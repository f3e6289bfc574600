package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseStatus tags the outcome of one batch classification.
type ParseStatus string

const (
	StatusOK             ParseStatus = "ok"
	StatusParseError     ParseStatus = "parse_error"
	StatusLengthMismatch ParseStatus = "length_mismatch"
	StatusIndexMismatch  ParseStatus = "index_mismatch"
	StatusCallFailed     ParseStatus = "call_failed"
)

var ErrNoProvider = errors.New("no classifier provider configured")

// Item is one post in a batch.
type Item struct {
	Text     string
	Official bool
}

// Request is one batch of posts about a single entity.
type Request struct {
	EntityName string
	Symbol     string
	Items      []Item
}

// Verdict is the model's rating for the item at Index.
type Verdict struct {
	Index     int
	Score     int
	Category  string
	Summary   string
	Reasoning string
}

// Result carries verdicts ordered by index when Status is StatusOK.
type Result struct {
	Status   ParseStatus
	Verdicts []Verdict
	Provider string
	Err      error
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Classifier rates a batch of posts with one provider call.
type Classifier struct {
	registry *Registry
	provider string
	timeout  time.Duration
	logger   zerolog.Logger
}

func New(registry *Registry, providerName string, timeout time.Duration, logger zerolog.Logger) *Classifier {
	return &Classifier{
		registry: registry,
		provider: providerName,
		timeout:  timeout,
		logger:   logger,
	}
}

// Classify never returns an error; failures are reported through Result.Status.
func (c *Classifier) Classify(ctx context.Context, req Request) Result {
	if len(req.Items) == 0 {
		return Result{Status: StatusOK}
	}
	if c == nil || c.registry == nil {
		return Result{Status: StatusCallFailed, Err: ErrNoProvider}
	}

	provider, err := c.registry.Provider(c.provider)
	if err != nil {
		return Result{Status: StatusCallFailed, Err: fmt.Errorf("%w: %v", ErrNoProvider, err)}
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := provider.Generate(callCtx, GenerateRequest{
		System:    systemPrompt,
		Prompt:    buildPrompt(req),
		MaxTokens: defaultMaxTokens,
		JSON:      true,
	})
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("provider", provider.Name()).
			Int("items", len(req.Items)).
			Dur("elapsed", time.Since(started)).
			Msg("classifier call failed")
		return Result{Status: StatusCallFailed, Provider: provider.Name(), Err: err}
	}

	result := parseReply(reply, len(req.Items))
	result.Provider = provider.Name()
	if !result.OK() {
		c.logger.Warn().
			Err(result.Err).
			Str("provider", provider.Name()).
			Str("status", string(result.Status)).
			Int("items", len(req.Items)).
			Msg("classifier reply rejected")
		return result
	}

	c.logger.Debug().
		Str("provider", provider.Name()).
		Int("items", len(req.Items)).
		Dur("elapsed", time.Since(started)).
		Msg("classifier batch scored")
	return result
}

// parseReply checks that the reply is an array of n verdicts whose indices are a permutation of 0..n-1.
func parseReply(reply string, n int) Result {
	raw, err := decodeVerdicts(cleanJSON(reply))
	if err != nil {
		return Result{Status: StatusParseError, Err: err}
	}
	if len(raw) != n {
		return Result{
			Status: StatusLengthMismatch,
			Err:    fmt.Errorf("expected %d verdicts, got %d", n, len(raw)),
		}
	}

	ordered := make([]Verdict, n)
	seen := make([]bool, n)
	for _, item := range raw {
		index := int(item.Index)
		if float64(index) != item.Index || index < 0 || index >= n || seen[index] {
			return Result{
				Status: StatusIndexMismatch,
				Err:    fmt.Errorf("verdict index %v is out of range or repeated", item.Index),
			}
		}
		seen[index] = true
		ordered[index] = Verdict{
			Index:     index,
			Score:     roundScore(item.ImportanceScore),
			Category:  strings.ToLower(strings.TrimSpace(item.Category)),
			Summary:   strings.TrimSpace(item.Summary),
			Reasoning: strings.TrimSpace(item.Reasoning),
		}
	}

	return Result{Status: StatusOK, Verdicts: ordered}
}

// roundScore clamps to the 0..10 scale before the int conversion so huge values cannot wrap.
func roundScore(score float64) int {
	return int(math.Round(math.Max(0, math.Min(10, score))))
}
