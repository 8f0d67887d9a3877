// Package oracle provides the external checks consulted before an entry.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// jsonClient is a rate-limited JSON GET client. It does not retry: a failed
// oracle call is a rejection, not something to wait on.
type jsonClient struct {
	http    *http.Client
	limiter *rate.Limiter
}

func newJSONClient(httpClient *http.Client, perSecond float64, burst int) *jsonClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &jsonClient{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (c *jsonClient) get(ctx context.Context, url string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
