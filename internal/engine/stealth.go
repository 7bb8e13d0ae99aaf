package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Re-export stealth types and functions for engine consumers.
type BrowserClient = stealth.BrowserClient

var DefaultRetryConfig = stealth.DefaultRetryConfig

func RetryHTTP(ctx context.Context, rc stealth.RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}

// BrowserHeaders returns Chrome-like request headers without accept-encoding,
// so net/http keeps transparent gzip handling.
func BrowserHeaders() map[string]string {
	h := stealth.ChromeHeaders()
	for k := range h {
		if strings.EqualFold(k, "accept-encoding") {
			delete(h, k)
		}
	}
	return h
}

// GetPage fetches an HTML page with browser headers and returns at most limit bytes.
// The stealth BrowserClient is tried first when configured; HTTPClient with
// transport-level retries is the fallback.
func GetPage(ctx context.Context, pageURL string, limit int64) ([]byte, error) {
	if bc := cfg.BrowserClient; bc != nil {
		data, _, status, err := bc.Do(http.MethodGet, pageURL, stealth.ChromeHeaders(), nil)
		if err == nil && status == http.StatusOK {
			if int64(len(data)) > limit {
				data = data[:limit]
			}
			return data, nil
		}
		slog.Debug("stealth: browser fetch failed, using http client",
			slog.String("url", pageURL), slog.Int("status", status), slog.Any("error", err))
	}

	resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range BrowserHeaders() {
			req.Header.Set(k, v)
		}
		return cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", pageURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
