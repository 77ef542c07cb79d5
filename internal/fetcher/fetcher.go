package fetcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/xfix/internal/telemetry"
	"github.com/JakeFAU/xfix/internal/xfix"
)

// Target is a post URL with the pieces strategies key their requests on.
type Target struct {
	URL    string
	PostID string
	Author string
}

// Strategy is one way of retrieving post content. Failures must be
// *xfix.FetchError; anything else is treated as a network failure.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, target Target) (xfix.Content, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc struct {
	Label string
	Fn    func(ctx context.Context, target Target) (xfix.Content, error)
}

// Name implements Strategy.
func (s StrategyFunc) Name() string { return s.Label }

// Fetch implements Strategy.
func (s StrategyFunc) Fetch(ctx context.Context, target Target) (xfix.Content, error) {
	return s.Fn(ctx, target)
}

// Config controls the chain.
type Config struct {
	// Timeout bounds each strategy attempt. Zero disables the bound.
	Timeout time.Duration
}

// Fetcher tries its strategies in order.
type Fetcher struct {
	cfg        Config
	strategies []Strategy
	logger     *zap.Logger
}

// New builds a Fetcher over the given strategies.
func New(cfg Config, logger *zap.Logger, strategies ...Strategy) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, strategies: strategies, logger: logger}
}

// Strategies returns the strategy names in attempt order.
func (f *Fetcher) Strategies() []string {
	names := make([]string, 0, len(f.strategies))
	for _, s := range f.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Fetch implements xfix.Fetcher. A URL without a numeric post id fails with
// a parse error before any request is made.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (xfix.Content, error) {
	postID, ok := ExtractPostID(rawURL)
	if !ok {
		return xfix.Content{}, xfix.NewFetchError(xfix.KindParse, "", "no post id in url", nil)
	}
	if len(f.strategies) == 0 {
		return xfix.Content{}, xfix.NewFetchError(xfix.KindNetwork, "", "no fetch strategies configured", nil)
	}
	target := Target{URL: rawURL, PostID: postID, Author: ExtractAuthor(rawURL)}

	var last *xfix.FetchError
	for _, strategy := range f.strategies {
		if err := ctx.Err(); err != nil {
			return xfix.Content{}, TransportError(strategy.Name(), err)
		}
		content, err := f.attempt(ctx, strategy, target)
		if err == nil {
			return content, nil
		}
		last = asFetchError(strategy.Name(), err)
		f.logger.Debug("fetch strategy failed",
			zap.String("url", rawURL),
			zap.String("strategy", strategy.Name()),
			zap.String("kind", string(last.Kind)),
			zap.Error(last),
		)
		if last.Kind == xfix.KindNotFound {
			break
		}
	}
	return xfix.Content{}, last
}

func (f *Fetcher) attempt(ctx context.Context, strategy Strategy, target Target) (xfix.Content, error) {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	content, err := strategy.Fetch(ctx, target)
	telemetry.ObserveFetch(strategy.Name(), string(xfix.KindOf(err)), time.Since(start))
	if err != nil {
		return xfix.Content{}, err
	}
	if content.SourceURL == "" {
		content.SourceURL = target.URL
	}
	return content, nil
}

func asFetchError(strategy string, err error) *xfix.FetchError {
	var fe *xfix.FetchError
	if errors.As(err, &fe) {
		if fe.Strategy != "" {
			return fe
		}
		tagged := *fe
		tagged.Strategy = strategy
		return &tagged
	}
	return TransportError(strategy, err)
}
