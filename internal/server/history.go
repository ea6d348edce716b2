package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pricestream/internal/symbol"
	"pricestream/pkg/storage/postgres"

	"gorm.io/gorm"
)

// History reads persisted quotes. nil when persistence is disabled, in
// which case the history routes are not registered at all.
type History interface {
	LatestQuote(ctx context.Context, symbol string) (*postgres.QuoteRecord, error)
	QuotesSince(ctx context.Context, symbol string, since time.Time) ([]postgres.QuoteRecord, error)
}

const defaultHistoryWindow = time.Hour

type historyPoint struct {
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// handleHistory serves GET /v1/history/{symbol}?since=30m.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sym, err := symbol.Normalize(r.PathValue("symbol"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if _, err := s.registry.Lookup(sym); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	window := defaultHistoryWindow
	if raw := r.URL.Query().Get("since"); raw != "" {
		window, err = time.ParseDuration(raw)
		if err != nil || window <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid since duration: "+raw)
			return
		}
	}

	records, err := s.history.QuotesSince(r.Context(), sym, time.Now().Add(-window))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "History query failed")
		return
	}

	points := make([]historyPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, historyPoint{Price: rec.Price, ObservedAt: rec.ObservedAt})
	}
	writeSuccess(w, map[string]interface{}{
		"symbol": sym,
		"count":  len(points),
		"quotes": points,
	})
}

// handleHistoryLatest serves GET /v1/history/{symbol}/latest.
func (s *Server) handleHistoryLatest(w http.ResponseWriter, r *http.Request) {
	sym, err := symbol.Normalize(r.PathValue("symbol"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if _, err := s.registry.Lookup(sym); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	rec, err := s.history.LatestQuote(r.Context(), sym)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "No history for symbol: "+sym)
			return
		}
		writeError(w, http.StatusInternalServerError, "History query failed")
		return
	}

	writeSuccess(w, map[string]interface{}{
		"symbol":      rec.Symbol,
		"feed_id":     rec.FeedID,
		"price":       rec.Price,
		"observed_at": rec.ObservedAt,
	})
}
