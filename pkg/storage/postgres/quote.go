package postgres

import (
	"context"
	"time"

	"pricestream/internal/cache"

	"gorm.io/gorm/clause"
)

// RecordQuotes inserts a batch of observed quotes. Re-observing the same
// symbol at the same instant is dropped rather than erroring, so the
// broadcast loop can fire-and-forget.
func (p *PostgresClient) RecordQuotes(ctx context.Context, quotes []cache.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	records := make([]QuoteRecord, 0, len(quotes))
	for _, q := range quotes {
		records = append(records, QuoteRecord{
			Symbol:     q.Symbol,
			FeedID:     q.FeedID,
			Price:      q.Price,
			ObservedAt: q.ObservedAt,
		})
	}

	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "observed_at"},
		},
		DoNothing: true,
	}).Create(&records).Error
}

// LatestQuote returns the most recent stored quote for a symbol.
func (p *PostgresClient) LatestQuote(ctx context.Context, symbol string) (*QuoteRecord, error) {
	var rec QuoteRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("observed_at DESC").
		First(&rec).Error

	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// QuotesSince returns the stored series for a symbol from a point in time.
func (p *PostgresClient) QuotesSince(ctx context.Context, symbol string, since time.Time) ([]QuoteRecord, error) {
	var recs []QuoteRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND observed_at >= ?", symbol, since).
		Order("observed_at ASC").
		Find(&recs).Error

	if err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteOldQuotes trims history older than the given cutoff.
func (p *PostgresClient) DeleteOldQuotes(ctx context.Context, before time.Time) error {
	return p.DB.WithContext(ctx).
		Where("observed_at < ?", before).
		Delete(&QuoteRecord{}).Error
}
