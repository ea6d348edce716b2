package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pricestream/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubHistory serves canned records per symbol.
type stubHistory struct {
	records map[string][]postgres.QuoteRecord
	err     error
}

func (h *stubHistory) LatestQuote(ctx context.Context, symbol string) (*postgres.QuoteRecord, error) {
	if h.err != nil {
		return nil, h.err
	}
	recs := h.records[symbol]
	if len(recs) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &recs[len(recs)-1], nil
}

func (h *stubHistory) QuotesSince(ctx context.Context, symbol string, since time.Time) ([]postgres.QuoteRecord, error) {
	if h.err != nil {
		return nil, h.err
	}
	var out []postgres.QuoteRecord
	for _, rec := range h.records[symbol] {
		if !rec.ObservedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newHistoryApp(t *testing.T, history History) *testApp {
	t.Helper()
	return newTestAppWith(t, "", history)
}

func TestHistoryRoutesAbsentWhenDisabled(t *testing.T) {
	app := newTestApp(t, "")
	// The route is unregistered, so the mux answers with a plain-text 404
	// that doGet's JSON decoding would choke on; issue the request directly.
	req := httptest.NewRequest(http.MethodGet, "/v1/history/btc", nil)
	rec := httptest.NewRecorder()
	app.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistorySince(t *testing.T) {
	now := time.Now()
	app := newHistoryApp(t, &stubHistory{records: map[string][]postgres.QuoteRecord{
		"BTC/USD": {
			{Symbol: "BTC/USD", FeedID: testBTCFeed, Price: 66000, ObservedAt: now.Add(-2 * time.Hour)},
			{Symbol: "BTC/USD", FeedID: testBTCFeed, Price: 67000, ObservedAt: now.Add(-30 * time.Minute)},
			{Symbol: "BTC/USD", FeedID: testBTCFeed, Price: 67500, ObservedAt: now.Add(-time.Minute)},
		},
	}})
	h := app.server.Handler()

	// Default window is one hour; the two-hour-old point falls outside it.
	rec, resp := doGet(t, h, "/v1/history/btc")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "BTC/USD", data["symbol"])
	assert.Equal(t, 2.0, data["count"])

	quotes := data["quotes"].([]interface{})
	require.Len(t, quotes, 2)
	assert.Equal(t, 67000.0, quotes[0].(map[string]interface{})["price"])
	assert.Equal(t, 67500.0, quotes[1].(map[string]interface{})["price"])

	// A wider window picks up all three.
	_, resp = doGet(t, h, "/v1/history/btc?since=3h")
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, 3.0, data["count"])
}

func TestHistorySinceValidation(t *testing.T) {
	app := newHistoryApp(t, &stubHistory{})
	h := app.server.Handler()

	for _, path := range []string{
		"/v1/history/btc?since=yesterday",
		"/v1/history/btc?since=-1h",
		"/v1/history/btc?since=0s",
	} {
		rec, resp := doGet(t, h, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.False(t, resp.Success, path)
	}
}

func TestHistoryUnknownSymbol(t *testing.T) {
	app := newHistoryApp(t, &stubHistory{})

	rec, resp := doGet(t, app.server.Handler(), "/v1/history/doesnotexist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Feed not found: DOESNOTEXIST/USD", resp.Error)
}

func TestHistoryLatest(t *testing.T) {
	now := time.Now()
	app := newHistoryApp(t, &stubHistory{records: map[string][]postgres.QuoteRecord{
		"BTC/USD": {
			{Symbol: "BTC/USD", FeedID: testBTCFeed, Price: 66000, ObservedAt: now.Add(-time.Hour)},
			{Symbol: "BTC/USD", FeedID: testBTCFeed, Price: 67500, ObservedAt: now},
		},
	}})
	h := app.server.Handler()

	rec, resp := doGet(t, h, "/v1/history/btc/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "BTC/USD", data["symbol"])
	assert.Equal(t, testBTCFeed, data["feed_id"])
	assert.Equal(t, 67500.0, data["price"])

	// Known symbol with no stored rows yet.
	rec, resp = doGet(t, h, "/v1/history/eth/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No history for symbol: ETH/USD", resp.Error)
}

func TestHistoryQueryFailure(t *testing.T) {
	app := newHistoryApp(t, &stubHistory{err: gorm.ErrInvalidDB})
	h := app.server.Handler()

	for _, path := range []string{"/v1/history/btc", "/v1/history/btc/latest"} {
		rec, resp := doGet(t, h, path)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Equal(t, "History query failed", resp.Error, path)
	}
}
