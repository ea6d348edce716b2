package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"pricestream/internal/feed"
	"pricestream/internal/symbol"
)

// apiResponse is the standard envelope for every JSON endpoint.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// priceResponse is the REST shape of one quote.
type priceResponse struct {
	Symbol string  `json:"symbol"`
	FeedID string  `json:"feed_id"`
	Price  float64 `json:"price"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Error: message})
}

// statusFor maps the error taxonomy to HTTP statuses: malformed input is
// the caller's fault, a missing feed is 404, anything else means the
// upstream aggregator let us down.
func statusFor(err error) int {
	var nf *feed.NotFoundError
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.Is(err, symbol.ErrInvalidSymbol):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
