package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// NotFoundError is returned when a canonical symbol has no feed mapping.
type NotFoundError struct {
	Symbol string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Feed not found: %s", e.Symbol)
}

// Registry maps canonical symbols ("BTC/USD") to upstream feed identifiers
// (64-char hex strings). It is built once at startup and never mutated,
// so concurrent reads need no locking.
type Registry struct {
	feeds map[string]string
}

// LoadFile reads a feed mapping from a JSON file shaped as
// {"BTC/USD": "<hex id>", ...}. A missing or malformed file is a startup
// failure; the process cannot serve anything without the mapping.
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed mapping: %w", err)
	}
	return Parse(b)
}

// Parse builds a Registry from raw JSON bytes.
func Parse(b []byte) (*Registry, error) {
	feeds := make(map[string]string)
	if err := json.Unmarshal(b, &feeds); err != nil {
		return nil, fmt.Errorf("parse feed mapping: %w", err)
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("parse feed mapping: no feeds defined")
	}
	return &Registry{feeds: feeds}, nil
}

// Lookup resolves a canonical symbol to its feed id.
func (r *Registry) Lookup(symbol string) (string, error) {
	id, ok := r.feeds[symbol]
	if !ok {
		return "", &NotFoundError{Symbol: symbol}
	}
	return id, nil
}

// Has reports whether a canonical symbol is known.
func (r *Registry) Has(symbol string) bool {
	_, ok := r.feeds[symbol]
	return ok
}

// List returns all known symbols in sorted order. A non-empty filter keeps
// only symbols containing it, case-insensitively.
func (r *Registry) List(filter string) []string {
	f := strings.ToLower(filter)
	out := make([]string, 0, len(r.feeds))
	for sym := range r.feeds {
		if f == "" || strings.Contains(strings.ToLower(sym), f) {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of known feeds.
func (r *Registry) Len() int {
	return len(r.feeds)
}
