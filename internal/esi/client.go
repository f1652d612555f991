package esi

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
)

const (
	DefaultESIBase    = "https://esi.evetech.net/latest"
	DefaultTycoonBase = "https://evetycoon.com/api/v1/market"

	userAgent = "eve-industry/1.0 (github.com)"
)

// ErrUnavailable wraps transport failures of a market data source. Callers decide
// whether to retry; clients in this package never do.
var ErrUnavailable = errors.New("market data source unavailable")

// StatusError is returned for a non-2xx response where the caller asked for strict handling.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Options configures an HTTP collaborator.
type Options struct {
	BaseURL string
	// Delay is the minimum spacing between consecutive requests. Zero disables it.
	Delay   time.Duration
	Timeout time.Duration
	HTTP    *http.Client
}

// transport is the shared request path: fixed-delay limiter, headers, JSON decode.
type transport struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

func newTransport(opts Options, defaultBase string) transport {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBase
	}
	hc := opts.HTTP
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return transport{base: base, http: hc, limiter: rate.NewLimiter(limit, 1)}
}

// do sends one request after waiting for the limiter. The caller closes the body.
func (t *transport) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, url, err)
	}
	return resp, nil
}

// fetchJSON decodes a 200 response into dst. Returns (false, nil) for any other status
// when lenient is set, otherwise a *StatusError.
func (t *transport) fetchJSON(ctx context.Context, method, url string, body, dst any, lenient bool) (bool, error) {
	resp, err := t.do(ctx, method, url, body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if lenient {
			io.Copy(io.Discard, resp.Body)
			return false, nil
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", url, err)
	}
	return true, nil
}
