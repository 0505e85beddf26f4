package watchlist

import (
	"context"
	"errors"
	"fmt"

	"marketnexus/internal/market"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSymbols seeds a fresh database so a new deployment renders a
// non-empty taskbar immediately.
var DefaultSymbols = []string{"AAPL", "BTC", "ETH", "SPX", "VNM"}

// ErrNotFound is returned when a symbol is absent from the watchlist.
var ErrNotFound = errors.New("watchlist: symbol not found")

// Store persists the tracked-symbol list in Postgres.
type Store struct {
	DB *gorm.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// InitializeAndMigrate connects to Postgres, runs AutoMigrate and seeds the
// default symbols into an empty table.
func InitializeAndMigrate(dsn string) (*Store, error) {
	store, err := NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := store.DB.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("auto-migrate watchlist table: %w", err)
	}

	if err := store.seedDefaults(); err != nil {
		return nil, fmt.Errorf("seed watchlist: %w", err)
	}
	return store, nil
}

func (s *Store) seedDefaults() error {
	var count int64
	if err := s.DB.Model(&Record{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	records := make([]Record, 0, len(DefaultSymbols))
	for _, sym := range DefaultSymbols {
		records = append(records, Record{Symbol: sym})
	}
	return s.DB.Create(&records).Error
}

// List returns every tracked symbol in insertion order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var records []Record
	err := s.DB.WithContext(ctx).Order("id").Find(&records).Error
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(records))
	for _, r := range records {
		symbols = append(symbols, r.Symbol)
	}
	return symbols, nil
}

// Add tracks a symbol. Adding an already-tracked symbol is a no-op.
func (s *Store) Add(ctx context.Context, symbol string) error {
	symbol = market.Normalize(symbol)
	if !market.ValidSymbol(symbol) {
		return fmt.Errorf("watchlist: invalid symbol %q", symbol)
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoNothing: true,
	}).Create(&Record{Symbol: symbol}).Error
}

// Remove untracks a symbol, reporting ErrNotFound when it was never tracked.
func (s *Store) Remove(ctx context.Context, symbol string) error {
	symbol = market.Normalize(symbol)
	tx := s.DB.WithContext(ctx).Where("symbol = ?", symbol).Delete(&Record{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return nil
}

func (s *Store) IsHealthy(ctx context.Context) bool {
	db, err := s.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (s *Store) Close() error {
	db, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
