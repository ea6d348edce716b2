package hub

import (
	"context"
	"sync/atomic"
	"time"

	"pricestream/internal/cache"
	"pricestream/internal/feed"
	"pricestream/pkg/crossbar"

	"go.uber.org/zap"
)

// Fetcher resolves feed ids to prices. Satisfied by *crossbar.Client.
type Fetcher interface {
	FetchPrices(ctx context.Context, feedIDs []string) (map[string]crossbar.Price, []string, error)
}

// Recorder persists quotes observed by the broadcast loop. Optional.
type Recorder interface {
	RecordQuotes(ctx context.Context, quotes []cache.Quote) error
}

// Broadcaster periodically refreshes quotes for every actively subscribed
// symbol and pushes updates to the subscribed connections. A symbol whose
// fetch fails this cycle is simply skipped; subscribers see the next
// successful update. Cycles never overlap: if a fetch is still in flight
// when the ticker fires, that tick is skipped rather than queued.
type Broadcaster struct {
	subs     *Subscriptions
	registry *feed.Registry
	fetcher  Fetcher
	cache    *cache.QuoteCache
	recorder Recorder // nil when history is disabled
	logger   *zap.Logger

	interval     time.Duration
	fetchTimeout time.Duration

	inFlight atomic.Bool
}

func NewBroadcaster(
	subs *Subscriptions,
	registry *feed.Registry,
	fetcher Fetcher,
	qc *cache.QuoteCache,
	recorder Recorder,
	interval time.Duration,
	fetchTimeout time.Duration,
	logger *zap.Logger,
) *Broadcaster {
	return &Broadcaster{
		subs:         subs,
		registry:     registry,
		fetcher:      fetcher,
		cache:        qc,
		recorder:     recorder,
		logger:       logger,
		interval:     interval,
		fetchTimeout: fetchTimeout,
	}
}

// Run drives the refresh loop until ctx is canceled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info("broadcaster started", zap.Duration("interval", b.interval))
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("broadcaster stopped")
			return
		case <-ticker.C:
			go b.Tick(ctx)
		}
	}
}

// Tick executes one refresh-and-push cycle. It returns false when a previous
// cycle is still in flight and this one was skipped.
func (b *Broadcaster) Tick(ctx context.Context) bool {
	if !b.inFlight.CompareAndSwap(false, true) {
		b.logger.Debug("previous cycle still in flight, skipping tick")
		return false
	}
	defer b.inFlight.Store(false)

	symbols := b.subs.ActiveSymbols()
	if len(symbols) == 0 {
		b.cache.Purge()
		return true
	}

	// Resolve symbols to feed ids; unknown symbols are dropped from this
	// cycle without notifying subscribers.
	symbolByID := make(map[string]string, len(symbols))
	ids := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		id, err := b.registry.Lookup(sym)
		if err != nil {
			continue
		}
		symbolByID[id] = sym
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return true
	}

	fctx, cancel := context.WithTimeout(ctx, b.fetchTimeout)
	defer cancel()

	prices, failed, err := b.fetcher.FetchPrices(fctx, ids)
	if err != nil {
		b.logger.Warn("refresh cycle failed", zap.Int("symbols", len(ids)), zap.Error(err))
		return true
	}
	if len(failed) > 0 {
		b.logger.Debug("partial refresh", zap.Int("failed", len(failed)))
	}

	quotes := make([]cache.Quote, 0, len(prices))
	for id, p := range prices {
		quotes = append(quotes, cache.Quote{
			Symbol:     symbolByID[id],
			FeedID:     id,
			Price:      p.Value,
			ObservedAt: p.At,
		})
	}
	b.cache.PutAll(quotes)

	if b.recorder != nil && len(quotes) > 0 {
		go b.record(quotes)
	}

	for _, q := range quotes {
		for _, c := range b.subs.Subscribers(q.Symbol) {
			c.PushQuote(q)
		}
	}
	return true
}

func (b *Broadcaster) record(quotes []cache.Quote) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.recorder.RecordQuotes(ctx, quotes); err != nil {
		b.logger.Warn("failed to record quotes", zap.Int("count", len(quotes)), zap.Error(err))
	}
}
