package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPut(t *testing.T) {
	c := New(time.Second)
	q := Quote{Symbol: "BTC/USD", FeedID: "abc", Price: 50000, ObservedAt: time.Now()}
	c.Put(q)

	got, ok := c.Get("BTC/USD")
	require.True(t, ok)
	assert.Equal(t, q, got)
}

func TestGet_MissOnUnknownSymbol(t *testing.T) {
	c := New(time.Second)
	_, ok := c.Get("ETH/USD")
	assert.False(t, ok)
}

func TestGet_ExpiredEntryIsMiss(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Put(Quote{Symbol: "BTC/USD", Price: 1})

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("BTC/USD")
	assert.False(t, ok, "expired entries must read as misses")
}

func TestPut_ReplacesEntry(t *testing.T) {
	c := New(time.Second)
	c.Put(Quote{Symbol: "BTC/USD", Price: 1})
	c.Put(Quote{Symbol: "BTC/USD", Price: 2})

	got, ok := c.Get("BTC/USD")
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Price)
	assert.Equal(t, 1, c.Len())
}

func TestPutAll(t *testing.T) {
	c := New(time.Second)
	c.PutAll([]Quote{
		{Symbol: "BTC/USD", Price: 1},
		{Symbol: "ETH/USD", Price: 2},
	})
	assert.Equal(t, 2, c.Len())
}

func TestPurge(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Put(Quote{Symbol: "BTC/USD", Price: 1})
	time.Sleep(25 * time.Millisecond)
	c.Put(Quote{Symbol: "ETH/USD", Price: 2})

	c.Purge()
	assert.Equal(t, 1, c.Len())
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	c := New(time.Second)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
				c.Put(Quote{Symbol: "BTC/USD", FeedID: "f", Price: float64(i)})
			}
		}
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if q, ok := c.Get("BTC/USD"); ok {
					// An entry is replaced atomically; a reader must
					// never see fields from different writes.
					assert.Equal(t, "f", q.FeedID)
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(done)
	wg.Wait()
}
