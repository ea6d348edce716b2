package symbol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSymbol indicates that user input could not be turned into a
// canonical trading pair.
var ErrInvalidSymbol = errors.New("invalid symbol format")

// DefaultQuote is appended when the input names only a base asset (e.g. "btc").
const DefaultQuote = "USD"

// Normalize canonicalizes raw user input into a "BASE/QUOTE" pair.
// "btc" becomes "BTC/USD", "eth/usdt" becomes "ETH/USDT".
// All lookup paths (REST path, REST query list, WS subscribe payload)
// must go through this before touching the feed registry.
func Normalize(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidSymbol)
	}

	if !strings.Contains(s, "/") {
		return s + "/" + DefaultQuote, nil
	}

	parts := strings.SplitN(s, "/", 2)
	base := strings.TrimSpace(parts[0])
	quote := strings.TrimSpace(parts[1])
	if base == "" || quote == "" || strings.Contains(quote, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}

	return base + "/" + quote, nil
}

// NormalizeAll maps Normalize over a list, splitting results into canonical
// symbols and the raw inputs that failed.
func NormalizeAll(raw []string) (valid []string, invalid []string) {
	for _, r := range raw {
		s, err := Normalize(r)
		if err != nil {
			invalid = append(invalid, r)
			continue
		}
		valid = append(valid, s)
	}
	return valid, invalid
}
