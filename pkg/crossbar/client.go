package crossbar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrUpstreamRejected marks a 4xx answer from the aggregator. It is
// permanent for the current request and is never retried.
var ErrUpstreamRejected = errors.New("upstream rejected request")

const (
	defaultMaxBatch    = 50
	defaultAttempts    = 3
	defaultConcurrency = 4
)

// Client fetches simulated feed prices from a crossbar-style aggregator.
// Batches are chunked, fetched concurrently, and transient failures
// (transport errors, 5xx) are retried with exponential backoff. Every call
// runs under the caller's context so a slow upstream cannot outlive the
// caller's deadline.
type Client struct {
	baseURL    string
	httpClient *http.Client

	maxBatch    int
	attempts    int
	concurrency int
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		maxBatch:    defaultMaxBatch,
		attempts:    defaultAttempts,
		concurrency: defaultConcurrency,
	}
}

func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// FetchPrices resolves feed ids to prices via GET /simulate/{id1},{id2},...
// Partial results are allowed: ids the upstream could not price come back in
// failed, not as an error. err is non-nil only when nothing was fetched.
func (c *Client) FetchPrices(ctx context.Context, feedIDs []string) (map[string]Price, []string, error) {
	ids := dedupe(feedIDs)
	if len(ids) == 0 {
		return map[string]Price{}, nil, nil
	}

	prices := make(map[string]Price, len(ids))
	var failed []string
	var firstErr error
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for start := 0; start < len(ids); start += c.maxBatch {
		end := start + c.maxBatch
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		g.Go(func() error {
			got, err := c.fetchChunk(gctx, chunk)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				failed = append(failed, chunk...)
				return nil // other chunks may still succeed
			}
			for _, id := range chunk {
				p, ok := got[normalizeFeedHash(id)]
				if !ok {
					failed = append(failed, id)
					continue
				}
				p.FeedID = id // keep the caller's spelling
				prices[id] = p
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return prices, failed, err
	}
	if len(prices) == 0 && firstErr != nil {
		return prices, failed, firstErr
	}
	return prices, failed, nil
}

// fetchChunk issues one simulate request with retries for transient failures.
func (c *Client) fetchChunk(ctx context.Context, ids []string) (map[string]Price, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		got, err := c.simulate(ctx, ids)
		if err == nil {
			return got, nil
		}
		if errors.Is(err, ErrUpstreamRejected) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) simulate(ctx context.Context, ids []string) (map[string]Price, error) {
	endpoint := c.baseURL + "/simulate/" + strings.Join(ids, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstreamRejected, resp.StatusCode, body)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("aggregator error: status %d: %s", resp.StatusCode, body)
	}

	var results []simulateResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	now := time.Now()
	prices := make(map[string]Price, len(results))
	for i, r := range results {
		id := normalizeFeedHash(r.FeedHash)
		if id == "" && i < len(ids) {
			// Older aggregators omit feedHash; results come back in
			// request order.
			id = normalizeFeedHash(ids[i])
		}
		if id == "" || len(r.Results) == 0 {
			continue
		}
		value, err := strconv.ParseFloat(r.Results[0], 64)
		if err != nil {
			continue
		}
		prices[id] = Price{FeedID: id, Value: value, At: now}
	}
	return prices, nil
}

func normalizeFeedHash(h string) string {
	h = strings.TrimPrefix(strings.TrimSpace(h), "0x")
	return strings.ToLower(h)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
