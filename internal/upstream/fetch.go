package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/scimap/internal/resilience"
)

// Response is a fetched body with the metadata callers use
type Response struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FinalURL    string
}

// Fetcher performs rate-limited, retried GET requests
type Fetcher struct {
	httpClient *http.Client
	settings   Settings
}

// NewFetcher builds a fetcher from client settings
func NewFetcher(s Settings) *Fetcher {
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{}
	} else {
		copied := *client
		client = &copied
	}
	if client.Timeout == 0 {
		client.Timeout = s.Timeout
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	return &Fetcher{httpClient: client, settings: s}
}

// Get fetches rawURL with the given Accept header, retrying transient
// failures. Non-2xx responses become *StatusError.
func (f *Fetcher) Get(ctx context.Context, rawURL, accept string) (*Response, error) {
	return resilience.DoVal(ctx, f.settings.Retry, func(ctx context.Context) (*Response, error) {
		return f.once(ctx, rawURL, accept)
	})
}

func (f *Fetcher) once(ctx context.Context, rawURL, accept string) (*Response, error) {
	if f.settings.Limiter != nil {
		if err := f.settings.Limiter.Wait(ctx, rawURL); err != nil {
			return nil, eris.Wrap(err, "rate limit wait")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.settings.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}

	req.Header.Set("User-Agent", f.settings.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: fetch", f.settings.Service)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, newStatusError(f.settings.Service, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.settings.MaxBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: read body", f.settings.Service), 0)
	}

	return &Response{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// PageTitle returns the last path segment of an article URL, unescaped,
// with underscores kept ("Jean_le_Rond_d'Alembert").
func PageTitle(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return ""
	}
	segments := strings.Split(path, "/")
	return segments[len(segments)-1]
}

// DisplayTitle de-slugs a page title for human display
func DisplayTitle(pageTitle string) string {
	return strings.ReplaceAll(pageTitle, "_", " ")
}
