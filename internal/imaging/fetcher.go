// Package imaging fetches portfolio images over HTTP, decodes and
// validates them, and applies the resilience policies (retry with
// backoff, per-host circuit breaking, and a polite rate limiter) that
// keep a bad upstream host from starving the whole ingestion run.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"

	"github.com/atelierlab/portfoliomatch/internal/matcherr"
)

// allowedContentTypes mirrors the validation list in
// original_source/app/image_downloader.py.
var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Config controls Fetcher's retry, timeout, and size policy. MaxRetries
// is the total number of attempts; RatePerSecond enables the limiter
// only when positive. Zero values fall back to the defaults in New.
type Config struct {
	Timeout       time.Duration
	MaxRetries    int
	MaxBytes      int64
	RatePerSecond float64
}

// Fetcher retrieves and decodes portfolio images, one per host-scoped
// circuit breaker, from arbitrary upstream URLs.
type Fetcher struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger

	limiter *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// New builds a Fetcher.
func New(log zerolog.Logger, cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Fetcher{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log,
		limiter:  limiter,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

func (f *Fetcher) breakerFor(host string) *gobreaker.CircuitBreaker[[]byte] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        host,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	f.breakers[host] = cb
	return cb
}

// Fetch downloads and decodes rawURL into an image.Image, classifying
// every failure per the taxonomy in internal/matcherr. It retries
// transient network/HTTP failures with a 1s/2s/4s backoff, bounded by
// Config.MaxRetries, and short-circuits per host once the circuit
// breaker trips.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, matcherr.NewForURL(matcherr.KindInvalidURL, rawURL, "malformed image URL", err)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, matcherr.NewForURL(matcherr.KindNetworkError, rawURL, "rate limiter wait canceled", err)
		}
	}

	cb := f.breakerFor(parsed.Host)

	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, matcherr.NewForURL(matcherr.KindTimeout, rawURL, "context canceled during backoff", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, err := cb.Execute(func() ([]byte, error) {
			return f.fetchOnce(ctx, rawURL)
		})
		if err == nil {
			img, decodeErr := decode(body)
			if decodeErr != nil {
				return nil, matcherr.NewForURL(matcherr.KindInvalidImage, rawURL, "failed to decode image", decodeErr)
			}
			return img, nil
		}

		lastErr = err
		if !retryable(err) {
			break
		}
		f.log.Debug().Str("url", rawURL).Int("attempt", attempt+1).Err(err).Msg("retrying image fetch")
	}

	return nil, classify(rawURL, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, matcherr.NewForURL(matcherr.KindInvalidURL, rawURL, "failed to build request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, matcherr.NewForURL(matcherr.KindTimeout, rawURL, "request timed out", err)
		}
		return nil, matcherr.NewForURL(matcherr.KindNetworkError, rawURL, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, matcherr.NewHTTPError(resp.StatusCode, rawURL, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if ct, _, splitErr := splitContentType(contentType); splitErr == nil && !allowedContentTypes[ct] {
		return nil, matcherr.NewForURL(matcherr.KindUnsupportedContentType, rawURL, fmt.Sprintf("unsupported content type %q", contentType), nil)
	}

	limited := io.LimitReader(resp.Body, f.cfg.MaxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, matcherr.NewForURL(matcherr.KindNetworkError, rawURL, "failed reading response body", err)
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return nil, matcherr.NewForURL(matcherr.KindTooLarge, rawURL, fmt.Sprintf("image exceeds max size of %d bytes", f.cfg.MaxBytes), nil)
	}
	return body, nil
}

func splitContentType(ct string) (string, string, error) {
	for i, c := range ct {
		if c == ';' {
			return ct[:i], ct[i+1:], nil
		}
	}
	if ct == "" {
		return "", "", fmt.Errorf("empty content type")
	}
	return ct, "", nil
}

func decode(body []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(body))
	return img, err
}

// retryable reports whether an error class is worth retrying: network
// blips, timeouts, and 5xx/408/429 HTTP responses. A 4xx response
// other than 408/429 is a permanent client-side rejection (bad URL,
// gone image, forbidden host) and is never retried.
func retryable(err error) bool {
	kind, ok := matcherr.KindOf(err)
	if !ok {
		return true
	}
	switch kind {
	case matcherr.KindNetworkError, matcherr.KindTimeout:
		return true
	case matcherr.KindHTTPError:
		status, ok := matcherr.StatusOf(err)
		if !ok {
			return false
		}
		return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	default:
		return false
	}
}

func classify(rawURL string, err error) error {
	if err == nil {
		return matcherr.NewForURL(matcherr.KindNetworkError, rawURL, "exhausted retries", nil)
	}
	if _, ok := matcherr.KindOf(err); ok {
		return err
	}
	return matcherr.NewForURL(matcherr.KindNetworkError, rawURL, "exhausted retries", err)
}
