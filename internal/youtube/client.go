// Package youtube talks to YouTube over plain HTTP: it lists a channel's
// uploads and downloads caption tracks as WebVTT. No API key is needed; the
// data is scraped from the public web pages and the Innertube endpoints they
// use themselves.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/saidwhen/internal/ingest"
	"github.com/MrWong99/saidwhen/internal/resilience"
)

const (
	// DefaultBaseURL is the origin every request is made against.
	DefaultBaseURL = "https://www.youtube.com"

	// DefaultUserAgent mimics a desktop browser; YouTube serves reduced
	// pages to unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

	webClientVersion = "2.20250222.10.00"

	maxPageBytes    = 6 << 20
	maxPayloadBytes = 4 << 20
)

// Client is the shared HTTP transport of [Lister] and [Captions]. All
// requests pass through one rate limiter and one circuit breaker. It is safe
// for concurrent use.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.Breaker
	baseURL   string
	userAgent string
}

// errTooLarge rejects a response body above the size limit instead of
// truncating it.
var errTooLarge = errors.New("response body too large")

// statusError is a non-200 answer.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// tripsBreaker reports whether err means YouTube is throttling us or
// unavailable. Other answers like 404 say nothing about its health.
func tripsBreaker(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errTooLarge) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit bounds outgoing requests to rps per second with the given
// burst. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithCircuitBreaker pauses all requests for cooldown after failures
// consecutive throttled (HTTP 429), failed (5xx) or unreachable requests.
// Zero values keep the defaults; a negative failures disables the breaker.
func WithCircuitBreaker(failures int, cooldown time.Duration) ClientOption {
	return func(c *Client) {
		if failures < 0 {
			c.breaker = nil
			return
		}
		c.breaker = newBreaker(failures, cooldown)
	}
}

func newBreaker(failures int, cooldown time.Duration) *resilience.Breaker {
	return resilience.New("youtube",
		resilience.WithThreshold(failures),
		resilience.WithCooldown(cooldown),
		resilience.WithFailureFilter(tripsBreaker),
	)
}

// WithBaseURL points the client at another origin, e.g. an httptest server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithUserAgent overrides [DefaultUserAgent].
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient returns a client with a 30 second timeout, 5 requests per
// second and a breaker that pauses for a minute after 5 consecutive
// failures unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(5, 5),
		breaker:   newBreaker(5, time.Minute),
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EmbedURL returns the embeddable player link that plays videoID from start
// to end seconds.
func EmbedURL(videoID string, start, end int) string {
	return fmt.Sprintf("%s/embed/%s?start=%d&end=%d", DefaultBaseURL, url.PathEscape(videoID), start, end)
}

// getPage fetches an HTML page below the base URL.
func (c *Client) getPage(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("youtube: build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// Skips the EU consent interstitial.
	req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+1"})
	return c.do(req, maxPageBytes)
}

// fetch downloads an absolute URL, used for caption payloads.
func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("youtube: build request: %w", err)
	}
	return c.do(req, maxPayloadBytes)
}

// postInnertube POSTs a JSON payload to /youtubei/v1/<endpoint> with WEB
// client headers.
func (c *Client) postInnertube(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("youtube: encode %s request: %w", endpoint, err)
	}
	u := c.baseURL + "/youtubei/v1/" + endpoint + "?prettyPrint=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("youtube: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Youtube-Client-Name", "1")
	req.Header.Set("X-Youtube-Client-Version", webClientVersion)
	req.Header.Set("Origin", c.baseURL)
	return c.do(req, maxPageBytes)
}

// do waits for the limiter, sends req once through the breaker and reads at
// most limit bytes of a 200 response. Every failure wraps
// [ingest.ErrTransport].
func (c *Client) do(req *http.Request, limit int64) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: %v", ingest.ErrTransport, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	if c.breaker == nil {
		return c.roundTrip(req, limit)
	}
	var data []byte
	err := c.breaker.Do(req.Context(), func(context.Context) error {
		var err error
		data, err = c.roundTrip(req, limit)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %s %s: %w", ingest.ErrTransport, req.Method, req.URL.Path, err)
	}
	return data, err
}

func (c *Client) roundTrip(req *http.Request, limit int64) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ingest.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: %s %s: %w: %s",
			ingest.ErrTransport, req.Method, req.URL.Path, &statusError{Code: resp.StatusCode}, bytes.TrimSpace(snippet))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ingest.ErrTransport, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s %s: %w (limit %d bytes)",
			ingest.ErrTransport, req.Method, req.URL.Path, errTooLarge, limit)
	}
	return data, nil
}

func webContext() map[string]any {
	return map[string]any{
		"client": map[string]any{
			"clientName":    "WEB",
			"clientVersion": webClientVersion,
			"hl":            "en",
			"gl":            "US",
		},
	}
}

// extractJSON returns the balanced JSON object at the start of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, ch := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// embeddedJSON finds "<marker> = {...}" in an HTML page and returns the
// object.
func embeddedJSON(page []byte, marker string) []byte {
	idx := bytes.Index(page, []byte(marker))
	if idx < 0 {
		return nil
	}
	rest := bytes.TrimLeft(page[idx+len(marker):], ` ="]`)
	return extractJSON(rest)
}
