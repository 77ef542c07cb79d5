package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/JakeFAU/xfix/internal/xfix"
)

var (
	// ErrEmptyResponse is returned when the reply has neither a title nor a
	// summary.
	ErrEmptyResponse = errors.New("model reply has no TITLE or SUMMARY")
	// ErrModelUnavailable is returned by CheckConnection when the configured
	// model is not installed.
	ErrModelUnavailable = errors.New("model not available")
)

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds Ollama connection settings.
type Config struct {
	Host        string
	Model       string
	Temperature float32
	NumPredict  int
	Timeout     time.Duration
}

// OllamaClient implements Generator against the Ollama HTTP API.
type OllamaClient struct {
	cfg    Config
	client *api.Client
}

// NewOllamaClient creates a client for cfg.Host.
func NewOllamaClient(cfg Config, httpClient *http.Client) (*OllamaClient, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.Host, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid ollama host %q", cfg.Host)
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.NumPredict == 0 {
		cfg.NumPredict = 500
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OllamaClient{cfg: cfg, client: api.NewClient(base, httpClient)}, nil
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.cfg.Model
}

// Generate implements Generator with a single non-streaming request.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	stream := false
	req := &api.GenerateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.NumPredict,
		},
	}
	var out strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.String(), nil
}

// CheckConnection verifies the server answers and the model is installed.
// Names match on the part before ":", so "qwen3" accepts "qwen3:latest".
func (c *OllamaClient) CheckConnection(ctx context.Context) error {
	resp, err := c.client.List(ctx)
	if err != nil {
		return fmt.Errorf("cannot reach ollama at %s: %w", c.cfg.Host, err)
	}
	want := baseModelName(c.cfg.Model)
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		name := m.Model
		if name == "" {
			name = m.Name
		}
		if name == c.cfg.Model || baseModelName(name) == want {
			return nil
		}
		names = append(names, name)
	}
	return fmt.Errorf("%w: %q (installed: %s)", ErrModelUnavailable, c.cfg.Model, strings.Join(names, ", "))
}

func baseModelName(name string) string {
	base, _, _ := strings.Cut(name, ":")
	return base
}

// Enricher implements xfix.Enricher on top of a Generator.
type Enricher struct {
	gen Generator
}

// NewEnricher wraps gen.
func NewEnricher(gen Generator) *Enricher {
	return &Enricher{gen: gen}
}

// Enrich implements xfix.Enricher.
func (e *Enricher) Enrich(ctx context.Context, content xfix.Content) (xfix.Enrichment, error) {
	reply, err := e.gen.Generate(ctx, BuildPrompt(content.Author, content.Text))
	if err != nil {
		return xfix.Enrichment{}, err
	}
	out := ParseResponse(reply)
	if out.Title == nil && out.Summary == nil {
		return xfix.Enrichment{}, fmt.Errorf("%w: %q", ErrEmptyResponse, preview(reply, 200))
	}
	return out, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
