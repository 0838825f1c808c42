package describe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/partner-finder/internal/config"
	"github.com/sells-group/partner-finder/internal/model"
)

type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	reply   func(user string) (string, error)
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, _ string, user string) (string, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, user)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply(user)
}

func okReply(user string) (string, error) {
	return `{"description_courte":"court","description_longue":"long","services":["s"]}`, nil
}

func candidates(names ...string) []model.BusinessCandidate {
	out := make([]model.BusinessCandidate, len(names))
	for i, n := range names {
		out[i] = model.BusinessCandidate{ID: n, Name: n, Activity: "Plombier", Address: "Paris", Website: model.NotAvailable}
	}
	return out
}

func TestGenerator_Describe(t *testing.T) {
	fc := &fakeCompleter{reply: okReply}
	g := NewGenerator(fc, 1, time.Second)

	c := model.BusinessCandidate{ID: "a", Name: "Plomberie Martin", Activity: "Plombier", Address: "Paris", Website: "https://martin.fr"}
	d, err := g.Describe(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "court", d.Short)

	require.Len(t, fc.prompts, 1)
	assert.Contains(t, fc.prompts[0], "Plomberie Martin")
	assert.Contains(t, fc.prompts[0], "https://martin.fr")
}

func TestBuildPrompt_NoWebsite(t *testing.T) {
	p := buildPrompt(model.BusinessCandidate{Name: "X", Website: model.NotAvailable})
	assert.NotContains(t, p, "Site web")
}

func TestGenerator_DescribeAll_OrderAndFailures(t *testing.T) {
	fc := &fakeCompleter{
		delay: 5 * time.Millisecond,
		reply: func(user string) (string, error) {
			switch {
			case strings.Contains(user, "Nom : b"):
				return "", errors.New("boom")
			case strings.Contains(user, "Nom : c"):
				return "pas de json", nil
			}
			return okReply(user)
		},
	}
	g := NewGenerator(fc, 2, time.Second)

	in := candidates("a", "b", "c", "d", "e")
	out, err := g.DescribeAll(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 5)

	for i, c := range out {
		assert.Equal(t, in[i].ID, c.ID)
	}
	assert.NotNil(t, out[0].Description)
	assert.Nil(t, out[1].Description)
	assert.Nil(t, out[2].Description)
	assert.NotNil(t, out[3].Description)
	assert.NotNil(t, out[4].Description)

	assert.Nil(t, in[0].Description, "input is not mutated")
	assert.LessOrEqual(t, fc.peak.Load(), int32(2))
}

func TestGenerator_DescribeAll_Canceled(t *testing.T) {
	fc := &fakeCompleter{delay: time.Second, reply: okReply}
	g := NewGenerator(fc, 1, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out, err := g.DescribeAll(ctx, candidates("a", "b", "c"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, out, 3)
}

func TestGenerator_Defaults(t *testing.T) {
	g := NewGenerator(&fakeCompleter{reply: okReply}, 0, 0)
	assert.Equal(t, defaultConcurrency, g.concurrency)
	assert.Equal(t, defaultTimeout, g.timeout)
}

func TestNewGeneratorFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Describe.Provider = "openai"
	cfg.OpenAI.Key = "k"
	g, err := NewGeneratorFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", g.completer.Name())

	cfg.Describe.Provider = "anthropic"
	g, err = NewGeneratorFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", g.completer.Name())

	cfg.Describe.Provider = "mistral"
	_, err = NewGeneratorFromConfig(cfg)
	require.Error(t, err)
}
