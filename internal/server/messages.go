package server

// clientMessage is the inbound WS shape:
// {"action":"subscribe","symbols":["BTC/USD","eth"]}.
type clientMessage struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
)

// priceMessage is one pushed quote update.
type priceMessage struct {
	Type      string  `json:"type"` // "price"
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // ms since epoch
	FeedID    string  `json:"feed_id"`
}

// ackMessage acknowledges a subscribe/unsubscribe, listing exactly the
// symbols whose state actually changed.
type ackMessage struct {
	Type    string   `json:"type"` // "subscribed" or "unsubscribed"
	Symbols []string `json:"symbols"`
}

// errorMessage reports a non-fatal protocol error; the connection stays up.
type errorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
