package crossbar

import "time"

// Price is one simulated feed value returned by the aggregator.
type Price struct {
	FeedID string
	Value  float64
	At     time.Time
}

// simulateResult is one element of the aggregator's simulate response.
// feedHash may carry a "0x" prefix; results holds decimal strings.
type simulateResult struct {
	FeedHash string   `json:"feedHash"`
	Results  []string `json:"results"`
}
