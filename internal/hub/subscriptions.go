package hub

import (
	"sync"

	"pricestream/internal/cache"
)

// Conn is the hub's view of one streaming client. Implementations must not
// block in PushQuote; slow consumers are handled by the connection's own
// send queue.
type Conn interface {
	ID() string
	PushQuote(q cache.Quote)
}

// Subscriptions tracks which connections want which symbols. All methods are
// safe for concurrent use; callers never need their own locking.
//
// Invariant: a connection appears under a symbol if and only if its last
// successful subscribe for that symbol has no later unsubscribe or drop.
type Subscriptions struct {
	mu       sync.RWMutex
	bySymbol map[string]map[Conn]struct{}
	byConn   map[Conn]map[string]struct{}
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		bySymbol: make(map[string]map[Conn]struct{}),
		byConn:   make(map[Conn]map[string]struct{}),
	}
}

// Subscribe adds the connection under each symbol and returns the symbols
// that were actually added. Re-subscribing is a no-op, not an error.
func (s *Subscriptions) Subscribe(c Conn, symbols []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.byConn[c]
	if subs == nil {
		subs = make(map[string]struct{})
		s.byConn[c] = subs
	}

	var added []string
	for _, sym := range symbols {
		if _, ok := subs[sym]; ok {
			continue
		}
		subs[sym] = struct{}{}
		conns := s.bySymbol[sym]
		if conns == nil {
			conns = make(map[Conn]struct{})
			s.bySymbol[sym] = conns
		}
		conns[c] = struct{}{}
		added = append(added, sym)
	}
	return added
}

// Unsubscribe removes the connection from each symbol and returns the
// symbols that were actually removed. Unsubscribing from a symbol never
// subscribed is a no-op.
func (s *Subscriptions) Unsubscribe(c Conn, symbols []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.byConn[c]
	if !ok {
		return nil
	}

	var removed []string
	for _, sym := range symbols {
		if _, ok := subs[sym]; !ok {
			continue
		}
		delete(subs, sym)
		s.removeFromSymbol(sym, c)
		removed = append(removed, sym)
	}
	return removed
}

// Drop removes the connection from every symbol. Called exactly once per
// connection lifecycle, on normal close or any transport error.
func (s *Subscriptions) Drop(c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sym := range s.byConn[c] {
		s.removeFromSymbol(sym, c)
	}
	delete(s.byConn, c)
}

func (s *Subscriptions) removeFromSymbol(sym string, c Conn) {
	conns := s.bySymbol[sym]
	delete(conns, c)
	if len(conns) == 0 {
		delete(s.bySymbol, sym)
	}
}

// ActiveSymbols returns every symbol with at least one subscriber. The
// broadcast loop polls exactly this set, so upstream load tracks demand.
func (s *Subscriptions) ActiveSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.bySymbol))
	for sym := range s.bySymbol {
		out = append(out, sym)
	}
	return out
}

// Subscribers returns a snapshot of the connections subscribed to symbol.
func (s *Subscriptions) Subscribers(symbol string) []Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := s.bySymbol[symbol]
	out := make([]Conn, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

// SubscriberCount returns how many connections are subscribed to symbol.
func (s *Subscriptions) SubscriberCount(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySymbol[symbol])
}

// ConnCount returns the number of registered connections.
func (s *Subscriptions) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byConn)
}
