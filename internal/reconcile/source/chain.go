package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/technerv/election-monitor/internal/platform/config"
	syncmetrics "github.com/technerv/election-monitor/internal/reconcile/metrics"
	"github.com/technerv/election-monitor/pkg/platform/circuit"
)

// ErrAllStrategiesFailed means no strategy produced a usable response.
var ErrAllStrategiesFailed = errors.New("all fetch strategies failed")

// Outcome is what the chain produced for one target.
type Outcome struct {
	Strategy   string
	Candidates []Candidate
	// Failures lists strategies that errored or were skipped before the
	// winning one.
	Failures []error
}

type guarded struct {
	strategy Strategy
	breaker  *circuit.Breaker
}

// Chain tries strategies in order; the first non-empty success wins. Each
// strategy sits behind its own breaker so a dead source stops costing
// rate-limit slots.
type Chain struct {
	strategies []guarded
	logger     *slog.Logger
	metrics    *syncmetrics.Metrics
}

type ChainOption func(*Chain)

func WithChainLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

func WithChainMetrics(m *syncmetrics.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// WithBreakerOptions applies breaker options to every strategy guard.
func WithBreakerOptions(opts ...circuit.Option) ChainOption {
	return func(c *Chain) {
		for i := range c.strategies {
			c.strategies[i].breaker = circuit.New(c.strategies[i].strategy.Name(), opts...)
		}
	}
}

func NewChain(strategies []Strategy, opts ...ChainOption) *Chain {
	c := &Chain{logger: slog.Default()}
	for _, s := range strategies {
		c.strategies = append(c.strategies, guarded{strategy: s, breaker: circuit.New(s.Name())})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultChain wires RTS, per-constituency and fallback strategies from
// config. The fallback strategy is omitted when no community URLs are set.
func NewDefaultChain(cfg config.FetchConfig, client Fetcher, opts ...ChainOption) *Chain {
	strategies := []Strategy{
		NewRTSStrategy(client, cfg.RTSURL),
		NewConstituencyStrategy(client, cfg.RTSURL, cfg.BaseURL),
	}
	if len(cfg.FallbackURLs) > 0 {
		strategies = append(strategies, NewFallbackStrategy(client, cfg.FallbackURLs))
	}
	return NewChain(strategies, opts...)
}

// Fetch runs the chain. An empty success is not an error; the error is
// returned only when every strategy failed or was skipped.
func (c *Chain) Fetch(ctx context.Context, target Target) (Outcome, error) {
	var (
		out       Outcome
		succeeded bool
	)
	for _, g := range c.strategies {
		name := g.strategy.Name()
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !g.breaker.Allow() {
			c.metrics.IncStrategy(name, "skipped")
			out.Failures = append(out.Failures, fmt.Errorf("%s: circuit open", name))
			continue
		}

		found, err := g.strategy.Fetch(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			_, change := g.breaker.RecordFailure()
			if change.Opened {
				c.logger.WarnContext(ctx, "source circuit opened", "strategy", name)
			}
			c.metrics.IncStrategy(name, "failed")
			c.logger.InfoContext(ctx, "fetch strategy failed",
				"strategy", name,
				"election_id", target.ElectionID,
				"error", err,
			)
			out.Failures = append(out.Failures, fmt.Errorf("%s: %w", name, err))
			continue
		}

		_, change := g.breaker.RecordSuccess()
		if change.Closed {
			c.logger.InfoContext(ctx, "source circuit closed", "strategy", name)
		}
		succeeded = true
		if len(found) == 0 {
			c.metrics.IncStrategy(name, "empty")
			continue
		}
		c.metrics.IncStrategy(name, "ok")
		out.Strategy = name
		out.Candidates = found
		return out, nil
	}

	if !succeeded {
		if len(out.Failures) == 0 {
			return out, ErrAllStrategiesFailed
		}
		return out, fmt.Errorf("%w: %w", ErrAllStrategiesFailed, errors.Join(out.Failures...))
	}
	return out, nil
}
