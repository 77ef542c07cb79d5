// Package collyfetcher implements the direct-page strategy using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/xfix/internal/fetcher"
	"github.com/JakeFAU/xfix/internal/xfix"
)

const strategyName = "page"

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher scrapes the post page and reads its Open Graph tags.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type pageResult struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = fetcher.BrowserUserAgent
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Name implements fetcher.Strategy.
func (f *Fetcher) Name() string { return strategyName }

// Fetch implements fetcher.Strategy.
func (f *Fetcher) Fetch(ctx context.Context, target fetcher.Target) (xfix.Content, error) {
	var result pageResult
	collector := f.buildCollector(&result)

	err := f.runCollector(ctx, collector, target.URL)
	if ctx.Err() != nil {
		// The visit goroutine may still be writing result.
		return xfix.Content{}, fetcher.TransportError(strategyName, err)
	}
	switch {
	case result.status == http.StatusOK:
	case result.status != 0:
		return xfix.Content{}, fetcher.StatusError(strategyName, result.status)
	default:
		if err == nil {
			err = result.err
		}
		if err == nil {
			err = errNoResponse
		}
		return xfix.Content{}, fetcher.TransportError(strategyName, err)
	}
	return fetcher.ContentFromPage(strategyName, bytes.NewReader(result.body), target)
}

func (f *Fetcher) buildCollector(result *pageResult) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	f.configureCollectorHooks(collector, result)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *pageResult) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("DNT", "1")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})

	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		result.err = err
		if r != nil {
			result.status = r.StatusCode
		}
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// errNoResponse marks a visit that produced neither a response nor an error.
var errNoResponse = errors.New("no response")

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}
