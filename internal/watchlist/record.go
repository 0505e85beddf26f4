package watchlist

import "time"

// Record is one tracked symbol.
type Record struct {
	ID uint `gorm:"primaryKey"`

	Symbol string `gorm:"type:varchar(10);not null;uniqueIndex:idx_watchlist_symbol"`

	AddedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (Record) TableName() string {
	return "watchlist"
}
