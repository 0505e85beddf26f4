package watchlist_test

import (
	"context"
	"errors"
	"testing"

	"marketnexus/config"
	"marketnexus/internal/watchlist"
)

// Requires a local Postgres; skipped when none is reachable.
// go test -v --run TestWatchlistCRUD
func TestWatchlistCRUD(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "marketnexus_test",
		SSLMode:  "disable",
	}

	if err := watchlist.CreateDatabase(cfg, "dev"); err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}

	store, err := watchlist.InitializeAndMigrate(cfg.DSN("dev"))
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// A fresh table is seeded with the defaults.
	symbols, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(symbols) == 0 {
		t.Fatal("expected seeded watchlist")
	}

	if err := store.Add(ctx, "tsla"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	// Adding again is a no-op, not an error.
	if err := store.Add(ctx, "TSLA"); err != nil {
		t.Fatalf("duplicate add failed: %v", err)
	}

	symbols, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	found := false
	for _, s := range symbols {
		if s == "TSLA" {
			found = true
		}
	}
	if !found {
		t.Fatal("added symbol missing from list")
	}

	if err := store.Remove(ctx, "TSLA"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := store.Remove(ctx, "TSLA"); !errors.Is(err, watchlist.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddRejectsInvalidSymbol(t *testing.T) {
	store := &watchlist.Store{}
	if err := store.Add(context.Background(), "BAD$YM"); err == nil {
		t.Fatal("expected invalid symbol error")
	}
}
