package readiness

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// DefaultProbeInterval is the delay between two HTTP probe attempts.
const DefaultProbeInterval = 200 * time.Millisecond

// HTTPProbe waits until the backend answers HTTP on URL.
// Any response with a status below 500 counts as ready.
type HTTPProbe struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
}

// Wait polls until the backend answers or ctx is done.
func (p HTTPProbe) Wait(ctx context.Context) error {
	if p.URL == "" {
		return errors.New("http probe requires url")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: time.Second}
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if p.once(ctx, client) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (p HTTPProbe) once(ctx context.Context, client *http.Client) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
