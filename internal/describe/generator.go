// Package describe writes French directory copy for accepted candidates
// with an LLM backend.
package describe

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/partner-finder/internal/config"
	"github.com/sells-group/partner-finder/internal/metrics"
	"github.com/sells-group/partner-finder/internal/model"
)

const (
	defaultConcurrency = 4
	defaultTimeout     = 45 * time.Second
)

// Generator attaches descriptions to candidates.
type Generator struct {
	completer   Completer
	concurrency int
	timeout     time.Duration
}

// NewGenerator creates a Generator. Non-positive concurrency or timeout
// fall back to defaults.
func NewGenerator(c Completer, concurrency int, timeout time.Duration) *Generator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{completer: c, concurrency: concurrency, timeout: timeout}
}

// NewGeneratorFromConfig builds the configured backend and wraps it.
func NewGeneratorFromConfig(cfg *config.Config) (*Generator, error) {
	c, err := NewCompleterFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewGenerator(c, cfg.Describe.Concurrency, time.Duration(cfg.Describe.TimeoutSecs)*time.Second), nil
}

// Describe generates the description of one candidate.
func (g *Generator) Describe(ctx context.Context, c model.BusinessCandidate) (*model.Description, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.completer.Complete(ctx, systemPrompt, buildPrompt(c))
	if err != nil {
		metrics.Descriptions.WithLabelValues(g.completer.Name(), "error").Inc()
		return nil, eris.Wrapf(err, "describe: candidate %s", c.ID)
	}
	d, err := parseDescription(text)
	if err != nil {
		metrics.Descriptions.WithLabelValues(g.completer.Name(), "invalid").Inc()
		return nil, eris.Wrapf(err, "describe: candidate %s", c.ID)
	}
	metrics.Descriptions.WithLabelValues(g.completer.Name(), "ok").Inc()
	return d, nil
}

// DescribeAll describes every candidate with bounded concurrency and returns
// a copy in input order. A failure leaves that candidate without a
// description; only context cancellation is returned as an error.
func (g *Generator) DescribeAll(ctx context.Context, cands []model.BusinessCandidate) ([]model.BusinessCandidate, error) {
	out := make([]model.BusinessCandidate, len(cands))
	copy(out, cands)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i := range out {
		i := i
		eg.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			d, err := g.Describe(gctx, out[i])
			if err != nil {
				zap.L().Warn("describe: skipping candidate",
					zap.String("id", out[i].ID),
					zap.String("name", out[i].Name),
					zap.Error(err),
				)
				return nil
			}
			out[i].Description = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return out, eris.Wrap(err, "describe: canceled")
	}
	if err := ctx.Err(); err != nil {
		return out, eris.Wrap(err, "describe: canceled")
	}
	return out, nil
}
