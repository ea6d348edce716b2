package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"pricestream/internal/cache"
	"pricestream/internal/symbol"

	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready.Load() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

// handlePrice serves GET /v1/prices/{symbol}.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	sym, err := symbol.Normalize(r.PathValue("symbol"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	q, err := s.getQuote(r.Context(), sym)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, priceResponse{Symbol: q.Symbol, FeedID: q.FeedID, Price: q.Price})
}

// handlePrices serves GET /v1/prices?symbols=btc,eth,sol. Symbols that fail
// individually are omitted from the result, not turned into errors.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	raw := splitCSV(r.URL.Query().Get("symbols"))
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "No symbols provided")
		return
	}

	symbols, invalid := symbol.NormalizeAll(raw)
	if len(invalid) > 0 {
		s.logger.Debug("skipping malformed symbols", zap.Strings("symbols", invalid))
	}

	out := make([]priceResponse, 0, len(symbols))
	for _, sym := range symbols {
		q, err := s.getQuote(r.Context(), sym)
		if err != nil {
			s.logger.Debug("skipping symbol", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		out = append(out, priceResponse{Symbol: q.Symbol, FeedID: q.FeedID, Price: q.Price})
	}
	writeSuccess(w, out)
}

// handleSymbols serves GET /v1/symbols?filter=substr.
func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := s.registry.List(r.URL.Query().Get("filter"))
	writeSuccess(w, map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// getQuote is the REST read path: cache hit or a direct upstream fetch
// bounded by the request context.
func (s *Server) getQuote(ctx context.Context, sym string) (cache.Quote, error) {
	if q, ok := s.cache.Get(sym); ok {
		return q, nil
	}

	id, err := s.registry.Lookup(sym)
	if err != nil {
		return cache.Quote{}, err
	}

	prices, _, err := s.fetcher.FetchPrices(ctx, []string{id})
	if err != nil {
		return cache.Quote{}, fmt.Errorf("fetch price for %s: %w", sym, err)
	}
	p, ok := prices[id]
	if !ok {
		return cache.Quote{}, fmt.Errorf("no price data for feed %s", id)
	}

	q := cache.Quote{Symbol: sym, FeedID: id, Price: p.Value, ObservedAt: p.At}
	s.cache.Put(q)
	return q, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
