package hub

import (
	"sort"
	"sync"
	"testing"

	"pricestream/internal/cache"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	pushed []cache.Quote
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) PushQuote(q cache.Quote) {
	c.mu.Lock()
	c.pushed = append(c.pushed, q)
	c.mu.Unlock()
}

func (c *fakeConn) pushedSymbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.pushed))
	for _, q := range c.pushed {
		out = append(out, q.Symbol)
	}
	sort.Strings(out)
	return out
}

func TestSubscribe(t *testing.T) {
	s := NewSubscriptions()
	c := newFakeConn("c1")

	added := s.Subscribe(c, []string{"BTC/USD", "ETH/USD"})
	assert.Equal(t, []string{"BTC/USD", "ETH/USD"}, added)
	assert.Equal(t, 1, s.SubscriberCount("BTC/USD"))
	assert.Equal(t, 1, s.ConnCount())
}

func TestSubscribe_Idempotent(t *testing.T) {
	s := NewSubscriptions()
	c := newFakeConn("c1")

	s.Subscribe(c, []string{"BTC/USD"})
	added := s.Subscribe(c, []string{"BTC/USD"})

	assert.Empty(t, added, "re-subscribe adds nothing")
	assert.Equal(t, 1, s.SubscriberCount("BTC/USD"))
}

func TestUnsubscribe(t *testing.T) {
	s := NewSubscriptions()
	c := newFakeConn("c1")
	s.Subscribe(c, []string{"BTC/USD", "ETH/USD"})

	removed := s.Unsubscribe(c, []string{"BTC/USD"})
	assert.Equal(t, []string{"BTC/USD"}, removed)
	assert.Equal(t, 0, s.SubscriberCount("BTC/USD"))
	assert.Equal(t, 1, s.SubscriberCount("ETH/USD"))
}

func TestUnsubscribe_NeverSubscribedIsNoop(t *testing.T) {
	s := NewSubscriptions()
	c := newFakeConn("c1")

	removed := s.Unsubscribe(c, []string{"BTC/USD"})
	assert.Empty(t, removed)

	s.Subscribe(c, []string{"ETH/USD"})
	removed = s.Unsubscribe(c, []string{"BTC/USD"})
	assert.Empty(t, removed)
}

func TestDrop_RemovesEverySubscription(t *testing.T) {
	s := NewSubscriptions()
	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")
	s.Subscribe(c1, []string{"BTC/USD", "ETH/USD"})
	s.Subscribe(c2, []string{"BTC/USD"})

	s.Drop(c1)

	assert.Equal(t, 1, s.SubscriberCount("BTC/USD"))
	assert.Equal(t, 0, s.SubscriberCount("ETH/USD"))
	assert.Equal(t, 1, s.ConnCount())
	assert.Equal(t, []string{"BTC/USD"}, s.ActiveSymbols())
}

func TestActiveSymbols_OnlySymbolsWithSubscribers(t *testing.T) {
	s := NewSubscriptions()
	assert.Empty(t, s.ActiveSymbols())

	c := newFakeConn("c1")
	s.Subscribe(c, []string{"BTC/USD"})
	s.Unsubscribe(c, []string{"BTC/USD"})
	assert.Empty(t, s.ActiveSymbols(), "zero-subscriber symbols must disappear")
}

func TestSubscriptions_ConcurrentAccess(t *testing.T) {
	s := NewSubscriptions()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := newFakeConn(string(rune('a' + n)))
			for j := 0; j < 200; j++ {
				s.Subscribe(c, []string{"BTC/USD", "ETH/USD"})
				s.ActiveSymbols()
				s.Unsubscribe(c, []string{"ETH/USD"})
				s.Subscribers("BTC/USD")
			}
			s.Drop(c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, s.ConnCount())
	assert.Empty(t, s.ActiveSymbols())
}
