// Package probe checks reachability of published service endpoints from the
// host side, independent of the engine's own health checks.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultCadence = 2 * time.Second

// WaitHTTP polls url until it answers with a success (2xx or 3xx) status or
// the budget is exhausted. A zero cadence uses the default.
func WaitHTTP(ctx context.Context, url string, budget, cadence time.Duration) error {
	if cadence <= 0 {
		cadence = defaultCadence
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	client := &http.Client{Timeout: cadence}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	var lastErr error
	for {
		lastErr = tryOnce(ctx, client, url)
		if lastErr == nil {
			return nil
		}
		slog.Debug("endpoint not reachable yet", "url", url, "err", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("endpoint %q not reachable within %s: %w", url, budget, lastErr)
		case <-ticker.C:
		}
	}
}

func tryOnce(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}
