// Package metrics reads registration counts from the external metrics backend
// and degrades to a safe default when that backend is unavailable.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sources tagged on every count result.
const (
	SourceBackend  = "backend"
	SourceFallback = "fallback"
)

// CountResult is a registration count together with where it came from.
type CountResult struct {
	Count  int    `json:"count"`
	Source string `json:"source"`
}

// backendResponse is the shape the metrics backend must return. Anything else
// is treated as a failure and degraded.
type backendResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// Gateway wraps the metrics backend with a hard timeout and a fallback path.
// Failures never propagate to callers: the gateway answers with the last
// value the backend returned for that webinar, or zero.
type Gateway struct {
	baseURL   string
	client    *http.Client
	timeout   time.Duration
	logger    *zap.Logger
	lastKnown sync.Map // webinar external ID -> int
}

// NewGateway creates a degradation gateway. An empty baseURL disables the
// backend entirely; every read then serves the fallback.
func NewGateway(baseURL string, timeout time.Duration, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gateway{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

// FetchCount returns the registration count for a webinar. It never fails:
// timeout, transport errors, non-200 statuses and malformed bodies all
// degrade to the fallback value.
func (g *Gateway) FetchCount(ctx context.Context, webinarID string) CountResult {
	if g.baseURL == "" {
		return g.fallback(webinarID)
	}

	count, err := g.fetch(ctx, webinarID)
	if err != nil {
		g.logger.Warn("metrics backend unavailable, serving fallback",
			zap.Error(err), zap.String("webinar_id", webinarID))
		return g.fallback(webinarID)
	}

	g.lastKnown.Store(webinarID, count)
	return CountResult{Count: count, Source: SourceBackend}
}

func (g *Gateway) fetch(ctx context.Context, webinarID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	endpoint := g.baseURL + "/registrations/count"
	if webinarID != "" {
		endpoint += "?webinarId=" + url.QueryEscape(webinarID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("metrics request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("metrics status: %d", resp.StatusCode)
	}

	var body backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode metrics body: %w", err)
	}
	if !body.Success || body.Count < 0 {
		return 0, fmt.Errorf("metrics body failed validation: success=%v count=%d", body.Success, body.Count)
	}
	return body.Count, nil
}

func (g *Gateway) fallback(webinarID string) CountResult {
	if v, ok := g.lastKnown.Load(webinarID); ok {
		return CountResult{Count: v.(int), Source: SourceFallback}
	}
	return CountResult{Count: 0, Source: SourceFallback}
}
