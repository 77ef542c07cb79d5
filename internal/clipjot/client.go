package clipjot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/xfix/internal/telemetry"
	"github.com/JakeFAU/xfix/internal/xfix"
)

const (
	syncPath = "/api/v1/bookmarks/sync"
	editPath = "/api/v1/bookmarks/edit"

	maxErrorBody = 4096
)

// ErrUnauthorized is returned when the service rejects the API token.
var ErrUnauthorized = errors.New("bookmark api rejected token")

// APIError is a non-2xx reply from the bookmark service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bookmark api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("bookmark api %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Config holds client settings.
type Config struct {
	BaseURL     string
	Token       string
	SyncTimeout time.Duration
	EditTimeout time.Duration
	// EditRPS paces edit calls. Zero disables pacing.
	EditRPS float64
}

// Client implements xfix.BookmarkStore over HTTP.
type Client struct {
	cfg         Config
	http        *http.Client
	editLimiter *rate.Limiter
}

// New builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("bookmark api url is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("bookmark api token is required")
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 120 * time.Second
	}
	if cfg.EditTimeout <= 0 {
		cfg.EditTimeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{cfg: cfg, http: httpClient}
	if cfg.EditRPS > 0 {
		c.editLimiter = rate.NewLimiter(rate.Limit(cfg.EditRPS), 1)
	}
	return c, nil
}

type syncRequest struct {
	Cursor *string `json:"cursor"`
	Limit  int     `json:"limit"`
	Wait   bool    `json:"wait"`
}

type syncResponse struct {
	Bookmarks []xfix.Bookmark `json:"bookmarks"`
	Cursor    *string         `json:"cursor"`
	HasMore   bool            `json:"has_more"`
	Waited    bool            `json:"waited"`
}

// Sync implements xfix.BookmarkStore.
func (c *Client) Sync(ctx context.Context, cursor *string, limit int, wait bool) (xfix.SyncPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SyncTimeout)
	defer cancel()

	var resp syncResponse
	err := c.post(ctx, syncPath, syncRequest{Cursor: cursor, Limit: limit, Wait: wait}, &resp)
	if err != nil {
		telemetry.ObserveSync("error")
		return xfix.SyncPage{}, fmt.Errorf("sync: %w", err)
	}
	telemetry.ObserveSync("ok")

	return xfix.SyncPage{
		Bookmarks: resp.Bookmarks,
		Cursor:    resp.Cursor,
		HasMore:   resp.HasMore,
		Waited:    resp.Waited,
	}, nil
}

type editRequest struct {
	ID      int64   `json:"id"`
	Title   *string `json:"title,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// Edit implements xfix.BookmarkStore. Nil fields are omitted from the
// request and stay unchanged remotely.
func (c *Client) Edit(ctx context.Context, edit xfix.BookmarkEdit) (xfix.Bookmark, error) {
	if c.editLimiter != nil {
		if err := c.editLimiter.Wait(ctx); err != nil {
			return xfix.Bookmark{}, fmt.Errorf("edit pacing: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EditTimeout)
	defer cancel()

	var out xfix.Bookmark
	err := c.post(ctx, editPath, editRequest{ID: edit.ID, Title: edit.Title, Comment: edit.Comment}, &out)
	if err != nil {
		return xfix.Bookmark{}, fmt.Errorf("edit bookmark %d: %w", edit.ID, err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
