// Package upstream holds the plumbing shared by the external service
// clients: functional options, an HTTP fetcher with retry and per-host
// limits, and a JSON-through-cache helper.
package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/cache"
	"github.com/ppiankov/scimap/internal/resilience"
	"github.com/ppiankov/scimap/internal/worker"
)

// DefaultUserAgent identifies scimap to public APIs, as their etiquette asks
const DefaultUserAgent = "scimap/0.1 (https://github.com/ppiankov/scimap)"

// Settings configures one upstream client
type Settings struct {
	Service    string
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxBytes   int64
	HTTPClient *http.Client
	Cache      cache.Cache
	CacheTTL   time.Duration
	Retry      resilience.RetryConfig
	Limiter    *worker.Limiter
}

// Option mutates Settings
type Option func(*Settings)

// WithHTTPClient replaces the HTTP client. Its redirect policy is kept.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Settings) { s.HTTPClient = c }
}

// WithCache stores lookups in c for ttl. A zero ttl keeps the client default.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Settings) {
		s.Cache = c
		if ttl > 0 {
			s.CacheTTL = ttl
		}
	}
}

// WithRetry replaces the retry policy
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Settings) { s.Retry = cfg }
}

// WithBaseURL points the client at another endpoint. An empty u keeps the
// client default.
func WithBaseURL(u string) Option {
	return func(s *Settings) {
		if u != "" {
			s.BaseURL = u
		}
	}
}

// WithMaxAttempts changes only the attempt count of the retry policy
func WithMaxAttempts(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.Retry.MaxAttempts = n
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(s *Settings) {
		if ua != "" {
			s.UserAgent = ua
		}
	}
}

// WithLimiter applies per-host rate limits
func WithLimiter(l *worker.Limiter) Option {
	return func(s *Settings) { s.Limiter = l }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(s *Settings) {
		if d > 0 {
			s.Timeout = d
		}
	}
}

// Apply layers opts over a client's defaults and fills anything still unset
func Apply(defaults Settings, opts ...Option) Settings {
	s := defaults
	for _, opt := range opts {
		opt(&s)
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MaxBytes <= 0 {
		s.MaxBytes = 10 << 20
	}
	if s.Cache == nil {
		s.Cache = cache.Nop{}
	}
	if s.Retry.OnRetry == nil {
		s.Retry.OnRetry = resilience.RetryLogger(s.Service, "request")
	}
	return s
}

// StatusError reports a non-2xx response
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Service, e.StatusCode, http.StatusText(e.StatusCode))
}

func newStatusError(service string, code int) error {
	err := &StatusError{Service: service, StatusCode: code}
	if resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	return err
}

// StatusCode extracts the HTTP status from err, or 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Cached returns the value stored under key, or calls load and stores its
// result. Cache write failures are logged and otherwise ignored.
func Cached[T any](c cache.Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if data, ok := c.Get(key); ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return v, nil
		}
		_ = c.Delete(key)
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	if data, err := json.Marshal(v); err == nil {
		if err := c.Set(key, data, ttl); err != nil {
			zap.L().Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}
