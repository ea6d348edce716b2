package postgres

import "time"

// QuoteRecord is one observed price stored in the history table. The same
// symbol may appear many times; ObservedAt orders the series.
type QuoteRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol string `gorm:"type:text;not null;index:idx_quote_symbol;index:idx_symbol_observed,unique"`
	FeedID string `gorm:"type:varchar(64);not null"`

	Price float64 `gorm:"type:numeric;not null"`

	ObservedAt time.Time `gorm:"not null;index:idx_quote_observed;index:idx_symbol_observed,unique"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (QuoteRecord) TableName() string {
	return "quote_record"
}
