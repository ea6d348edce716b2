package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pricestream/internal/cache"
	"pricestream/internal/symbol"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxMessageSize = 64 * 1024
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades GET /v1/stream and runs the per-connection pumps.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newWSConn(conn, s, s.sendBuffer)
	s.trackStream(c)
	activeWSConnections.Inc()
	s.logger.Info("streaming connection opened", zap.String("remote", c.ID()))

	go c.writePump()
	go c.readPump()
}

// wsConn is one streaming client. Inbound messages are handled in arrival
// order by readPump; outbound traffic goes through a bounded send queue so
// a slow client can never stall the broadcast loop — on overflow the update
// is dropped, the client catches up on the next tick.
type wsConn struct {
	conn   *websocket.Conn
	server *Server
	logger *zap.Logger

	send chan []byte
	done chan struct{}

	dropOnce sync.Once
}

func newWSConn(conn *websocket.Conn, s *Server, sendBuffer int) *wsConn {
	return &wsConn{
		conn:   conn,
		server: s,
		logger: s.logger,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.conn.RemoteAddr().String() }

// PushQuote implements hub.Conn.
func (c *wsConn) PushQuote(q cache.Quote) {
	c.sendJSON(priceMessage{
		Type:      "price",
		Symbol:    q.Symbol,
		Price:     q.Price,
		Timestamp: q.ObservedAt.UnixMilli(),
		FeedID:    q.FeedID,
	})
}

func (c *wsConn) sendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- b:
	default:
		// Queue full: drop rather than block the sender.
	}
}

// drop releases the connection's subscriptions. Runs exactly once per
// lifecycle regardless of which pump noticed the close first.
func (c *wsConn) drop() {
	c.dropOnce.Do(func() {
		close(c.done)
		c.server.subs.Drop(c)
		c.server.untrackStream(c)
		activeWSConnections.Dec()
		c.logger.Info("streaming connection closed", zap.String("remote", c.ID()))
	})
}

func (c *wsConn) readPump() {
	defer func() {
		c.drop()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.sendJSON(errorMessage{Type: "error", Message: "Invalid message: " + err.Error()})
			continue
		}
		c.handleMessage(msg)
	}
}

// handleMessage applies one subscribe/unsubscribe. Malformed symbols make
// per-message errors, never a disconnect; unknown actions leave the
// subscription state untouched.
func (c *wsConn) handleMessage(msg clientMessage) {
	switch msg.Action {
	case actionSubscribe, actionUnsubscribe:
	default:
		c.sendJSON(errorMessage{Type: "error", Message: "Unknown action: " + msg.Action})
		return
	}

	symbols, invalid := symbol.NormalizeAll(msg.Symbols)
	for _, bad := range invalid {
		c.sendJSON(errorMessage{Type: "error", Message: fmt.Sprintf("Invalid symbol: %q", bad)})
	}
	if len(symbols) == 0 {
		if len(invalid) == 0 {
			c.sendJSON(errorMessage{Type: "error", Message: "No symbols provided"})
		}
		return
	}

	var ackType string
	var changed []string
	if msg.Action == actionSubscribe {
		ackType = "subscribed"
		changed = c.server.subs.Subscribe(c, symbols)
	} else {
		ackType = "unsubscribed"
		changed = c.server.subs.Unsubscribe(c, symbols)
	}
	if changed == nil {
		changed = []string{}
	}
	c.sendJSON(ackMessage{Type: ackType, Symbols: changed})
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.drop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
