package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/JakeFAU/xfix/internal/xfix"
)

// ErrCorruptState is returned by Load when the state file exists but cannot
// be decoded.
var ErrCorruptState = errors.New("corrupt state file")

// DefaultMaxAttempts is the retry budget per URL.
const DefaultMaxAttempts = 3

// RetryRecord tracks a URL that failed transiently.
type RetryRecord struct {
	Attempts    int    `json:"attempts"`
	LastAttempt string `json:"last_attempt"`
	ErrorType   string `json:"error_type"`
	BookmarkID  int64  `json:"bookmark_id"`
}

// Failure is a URL that will never be processed again.
type Failure struct {
	URL        string `json:"url"`
	BookmarkID int64  `json:"bookmark_id"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error"`
	FailedAt   string `json:"failed_at"`
}

// Backoff is the persisted escalation state of the rate limiter.
type Backoff struct {
	CurrentDelay   float64 `json:"current_delay"`
	FibonacciIndex int     `json:"fibonacci_index"`
}

// Document is the on-disk shape of the state file.
type Document struct {
	Cursor      *string                `json:"cursor"`
	LastUpdated *string                `json:"last_updated"`
	Retries     map[string]RetryRecord `json:"retries"`
	Failed      []Failure              `json:"failed"`
	Backoff     Backoff                `json:"backoff"`
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store owns the state document and its file.
type Store struct {
	mu     sync.RWMutex
	path   string
	clock  xfix.Clock
	doc    Document
	failed map[string]struct{}
}

// New creates a Store for path. Nothing is read until Load.
func New(path string, clock xfix.Clock) *Store {
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{
		path:   path,
		clock:  clock,
		doc:    Document{Retries: make(map[string]RetryRecord), Failed: []Failure{}},
		failed: make(map[string]struct{}),
	}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file leaves the store empty; a file
// that cannot be decoded yields an error wrapping ErrCorruptState.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w %s: %w", ErrCorruptState, s.path, err)
	}
	if doc.Retries == nil {
		doc.Retries = make(map[string]RetryRecord)
	}
	if doc.Failed == nil {
		doc.Failed = []Failure{}
	}
	if doc.Backoff.CurrentDelay < 0 || doc.Backoff.FibonacciIndex < 0 {
		return fmt.Errorf("%w %s: negative backoff", ErrCorruptState, s.path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.failed = make(map[string]struct{}, len(doc.Failed))
	for _, f := range doc.Failed {
		s.failed[f.URL] = struct{}{}
	}
	return nil
}

// Save stamps last_updated and atomically replaces the state file.
func (s *Store) Save() error {
	s.mu.Lock()
	now := s.timestamp()
	s.doc.LastUpdated = &now
	data, err := json.MarshalIndent(s.doc, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Cursor returns the saved sync cursor, or nil when none is stored.
func (s *Store) Cursor() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc.Cursor == nil {
		return nil
	}
	c := *s.doc.Cursor
	return &c
}

// SetCursor stores the cursor and saves immediately.
func (s *Store) SetCursor(cursor string) error {
	s.mu.Lock()
	s.doc.Cursor = &cursor
	s.mu.Unlock()
	return s.Save()
}

// ClearCursor forgets the cursor in memory only.
func (s *Store) ClearCursor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Cursor = nil
}

// RecordError counts a failure for url and reports whether it should be
// retried later. not_found failures, and failures that reach maxAttempts,
// promote the URL to the permanent failure list.
func (s *Store) RecordError(url string, bookmarkID int64, kind xfix.FetchKind, maxAttempts int) (retry bool, attempts int) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.failed[url]; ok {
		return false, s.failedAttempts(url)
	}
	now := s.timestamp()

	if kind.Permanent() {
		s.markFailed(url, bookmarkID, 1, string(kind), now)
		return false, 1
	}

	rec, ok := s.doc.Retries[url]
	if !ok {
		rec = RetryRecord{BookmarkID: bookmarkID}
	}
	rec.Attempts++
	rec.LastAttempt = now
	rec.ErrorType = string(kind)
	s.doc.Retries[url] = rec

	if rec.Attempts >= maxAttempts {
		s.markFailed(url, bookmarkID, rec.Attempts, string(kind), now)
		return false, rec.Attempts
	}
	return true, rec.Attempts
}

func (s *Store) markFailed(url string, bookmarkID int64, attempts int, kind, now string) {
	delete(s.doc.Retries, url)
	if _, ok := s.failed[url]; ok {
		return
	}
	s.doc.Failed = append(s.doc.Failed, Failure{
		URL:        url,
		BookmarkID: bookmarkID,
		Attempts:   attempts,
		LastError:  kind,
		FailedAt:   now,
	})
	s.failed[url] = struct{}{}
}

func (s *Store) failedAttempts(url string) int {
	for _, f := range s.doc.Failed {
		if f.URL == url {
			return f.Attempts
		}
	}
	return 0
}

// RecordSuccess drops any retry record for url.
func (s *Store) RecordSuccess(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc.Retries, url)
}

// IsFailed reports whether url is permanently failed.
func (s *Store) IsFailed(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.failed[url]
	return ok
}

// RetryCount returns the attempts recorded for url.
func (s *Store) RetryCount(url string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Retries[url].Attempts
}

// Backoff returns the persisted backoff state.
func (s *Store) Backoff() Backoff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Backoff
}

// SetBackoff records the limiter's escalation state. It is written on the
// next Save.
func (s *Store) SetBackoff(b Backoff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Backoff = b
}

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Document{
		Retries: make(map[string]RetryRecord, len(s.doc.Retries)),
		Failed:  slices.Clone(s.doc.Failed),
		Backoff: s.doc.Backoff,
	}
	if s.doc.Cursor != nil {
		c := *s.doc.Cursor
		out.Cursor = &c
	}
	if s.doc.LastUpdated != nil {
		u := *s.doc.LastUpdated
		out.LastUpdated = &u
	}
	for k, v := range s.doc.Retries {
		out.Retries[k] = v
	}
	return out
}

// Summary is a one-line description for shutdown logs.
func (s *Store) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cursor := "none"
	if s.doc.Cursor != nil {
		cursor = *s.doc.Cursor
	}
	return fmt.Sprintf("cursor=%s retries=%d failed=%d", cursor, len(s.doc.Retries), len(s.doc.Failed))
}

func (s *Store) timestamp() string {
	return s.clock.Now().UTC().Format(time.RFC3339Nano)
}
