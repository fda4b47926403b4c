// Package fetch provides the shared HTTP client used by the command handlers
// and background pollers. Every request carries a bounded timeout.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	requestTimeout = 10 * time.Second
	userAgent      = "Mozilla/5.0 (X11; Fedora; Linux x86_64; rv:84.0) Gecko/20100101 Firefox/84.0"
)

// SharedClient returns the process-wide HTTP client with connection pooling.
func SharedClient() *http.Client {
	return sharedClient
}

var sharedClient = &http.Client{
	Timeout: requestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// Get issues a GET with the shared client and browser User-Agent.
// The caller owns the response body.
func Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return sharedClient.Do(req)
}
