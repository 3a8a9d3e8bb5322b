package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the CWA open-data file API.
	DefaultBaseURL = "https://opendata.cwa.gov.tw/fileapi/v1/opendataapi"

	defaultTimeout = 30 * time.Second
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36"
	referer        = "https://www.cwa.gov.tw/V8/C/L/StarView/StarView.html"
)

// FetchError is a transient upstream failure. StatusCode is zero when the
// request never got a response.
type FetchError struct {
	Dataset    string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("fetching %s: status %d", e.Dataset, e.StatusCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: status %d: %v", e.Dataset, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.Dataset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// ClientConfig configures a Client. Zero fields fall back to defaults.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RPS caps outbound requests per second; zero or less disables the cap.
	RPS float64
}

// Client downloads forecast datasets while looking like an ordinary browser.
// Session cookies are kept between calls and dropped after any failure.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter
	log     *slog.Logger

	mu sync.Mutex
	hc *http.Client
}

// NewClient constructs a Client.
func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
	c.hc = c.newHTTPClient()
	return c
}

func (c *Client) newHTTPClient() *http.Client {
	// cookiejar.New never returns a non-nil error.
	jar, _ := cookiejar.New(nil)
	return &http.Client{Timeout: c.timeout, Jar: jar}
}

func (c *Client) httpClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hc
}

// ResetSession discards cookies so the next call starts a fresh session.
func (c *Client) ResetSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hc = c.newHTTPClient()
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json,text/html,application/xhtml+xml,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Referer", referer)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Cache-Control", "no-cache")
}

// Fetch downloads one dataset. It makes exactly one attempt; any failure is
// returned as a *FetchError for the caller to retry later.
func (c *Client) Fetch(ctx context.Context, dataset string) (Payload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Dataset: dataset, Err: fmt.Errorf("rate limit wait canceled: %w", err)}
	}

	query := url.Values{}
	if c.apiKey != "" {
		query.Set("Authorization", c.apiKey)
	}
	query.Set("format", "JSON")
	endpoint := c.baseURL + "/" + url.PathEscape(dataset) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Dataset: dataset, Err: fmt.Errorf("creating request: %w", err)}
	}
	setBrowserHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		// *url.Error carries the full URL, key included.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		c.ResetSession()
		c.log.Warn("forecast fetch failed", "dataset", dataset, "err", err)
		return nil, &FetchError{Dataset: dataset, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.ResetSession()
		c.log.Warn("forecast fetch rejected", "dataset", dataset, "status", resp.StatusCode)
		return nil, &FetchError{Dataset: dataset, StatusCode: resp.StatusCode}
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.ResetSession()
		c.log.Warn("forecast payload undecodable", "dataset", dataset, "err", err)
		return nil, &FetchError{Dataset: dataset, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return payload, nil
}
