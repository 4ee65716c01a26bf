package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/keywarden/keywarden-go/internal/model"
)

func TestMemoryGetNotFound(t *testing.T) {
	store := NewMemoryItemStore()

	_, err := store.Get(context.Background(), 1, "missing")
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Get() error = %v, want ErrItemNotFound", err)
	}
}

func TestMemoryUpsertAssignsServerTimestamp(t *testing.T) {
	store := NewMemoryItemStore()
	before := time.Now().UTC().Add(-time.Second)

	stored, err := store.Upsert(context.Background(), &model.Item{UserID: 1, ItemID: "a"})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	if stored.UpdatedAt.Before(before) {
		t.Errorf("UpdatedAt = %v, want after %v", stored.UpdatedAt, before)
	}
	if !stored.CreatedAt.Equal(stored.UpdatedAt) {
		t.Errorf("fresh item CreatedAt %v != UpdatedAt %v", stored.CreatedAt, stored.UpdatedAt)
	}
	if stored.ID == 0 {
		t.Error("expected non-zero row id")
	}
}

func TestMemoryUpsertMonotonicPerItem(t *testing.T) {
	store := NewMemoryItemStore()
	ctx := context.Background()

	first, err := store.Upsert(ctx, &model.Item{UserID: 1, ItemID: "a"})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	// Repeated writes in a tight loop must still get strictly increasing
	// timestamps despite microsecond clock granularity.
	prev := first.UpdatedAt
	for i := 0; i < 50; i++ {
		next, err := store.Upsert(ctx, &model.Item{UserID: 1, ItemID: "a"})
		if err != nil {
			t.Fatalf("Upsert() unexpected error: %v", err)
		}
		if !next.UpdatedAt.After(prev) {
			t.Fatalf("UpdatedAt %v not after previous %v", next.UpdatedAt, prev)
		}
		prev = next.UpdatedAt
	}
}

func TestMemoryUpsertConcurrentSameItem(t *testing.T) {
	store := NewMemoryItemStore()
	ctx := context.Background()

	// Racing writes for one fresh id must all land: whoever gets there
	// first inserts, the rest overwrite. Nobody gets an error back.
	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Upsert(ctx, &model.Item{UserID: 1, ItemID: "contested"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("writer %d: Upsert() unexpected error: %v", i, err)
		}
	}

	items, err := store.Scan(ctx, 1, model.ScanPosition{}, 10)
	if err != nil {
		t.Fatalf("Scan() unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected one row after racing writes, got %d", len(items))
	}
}

func TestMemoryScanResumesAfterEmptyIDWatermark(t *testing.T) {
	store := NewMemoryItemStore()
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	store.Seed(
		model.Item{UserID: 1, ItemID: "old", UpdatedAt: ts.Add(-time.Minute)},
		model.Item{UserID: 1, ItemID: "a", UpdatedAt: ts},
	)

	// An empty watermark id sorts before every id at that timestamp. The
	// scan must still treat it as a resume point rather than a full pull.
	items, err := store.Scan(context.Background(), 1, model.ScanPosition{HasAfter: true, AfterTime: ts}, 10)
	if err != nil {
		t.Fatalf("Scan() unexpected error: %v", err)
	}

	if len(items) != 1 || items[0].ItemID != "a" {
		t.Errorf("Scan() after (ts, \"\") returned wrong items: %+v", items)
	}
}

func TestMemoryUpsertPreservesCreatedAt(t *testing.T) {
	store := NewMemoryItemStore()
	ctx := context.Background()

	first, err := store.Upsert(ctx, &model.Item{UserID: 1, ItemID: "a"})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	second, err := store.Upsert(ctx, &model.Item{UserID: 1, ItemID: "a", Deleted: true})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on overwrite: %v != %v", second.CreatedAt, first.CreatedAt)
	}
	if second.ID != first.ID {
		t.Errorf("row id changed on overwrite: %d != %d", second.ID, first.ID)
	}
}

func TestMemoryScanOrderAndTieBreak(t *testing.T) {
	store := NewMemoryItemStore()
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// Three items share one timestamp; id is the tie-break.
	store.Seed(
		model.Item{UserID: 1, ItemID: "c", UpdatedAt: ts},
		model.Item{UserID: 1, ItemID: "a", UpdatedAt: ts},
		model.Item{UserID: 1, ItemID: "b", UpdatedAt: ts},
		model.Item{UserID: 1, ItemID: "z", UpdatedAt: ts.Add(-time.Hour)},
	)

	items, err := store.Scan(context.Background(), 1, model.ScanPosition{}, 10)
	if err != nil {
		t.Fatalf("Scan() unexpected error: %v", err)
	}

	want := []string{"z", "a", "b", "c"}
	if len(items) != len(want) {
		t.Fatalf("Scan() returned %d items, want %d", len(items), len(want))
	}
	for i, id := range want {
		if items[i].ItemID != id {
			t.Errorf("Scan()[%d].ItemID = %q, want %q", i, items[i].ItemID, id)
		}
	}
}

func TestMemoryScanResumesAfterWatermark(t *testing.T) {
	store := NewMemoryItemStore()
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	store.Seed(
		model.Item{UserID: 1, ItemID: "a", UpdatedAt: ts},
		model.Item{UserID: 1, ItemID: "b", UpdatedAt: ts},
		model.Item{UserID: 1, ItemID: "c", UpdatedAt: ts},
	)

	items, err := store.Scan(context.Background(), 1, model.ScanPosition{HasAfter: true, AfterTime: ts, AfterID: "a"}, 10)
	if err != nil {
		t.Fatalf("Scan() unexpected error: %v", err)
	}

	if len(items) != 2 || items[0].ItemID != "b" || items[1].ItemID != "c" {
		t.Errorf("Scan() after (ts, a) returned wrong items: %+v", items)
	}
}

func TestMemoryScanSinceInclusive(t *testing.T) {
	store := NewMemoryItemStore()
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	store.Seed(
		model.Item{UserID: 1, ItemID: "old", UpdatedAt: ts.Add(-time.Minute)},
		model.Item{UserID: 1, ItemID: "boundary", UpdatedAt: ts},
		model.Item{UserID: 1, ItemID: "new", UpdatedAt: ts.Add(time.Minute)},
	)

	items, err := store.Scan(context.Background(), 1, model.ScanPosition{Since: ts}, 10)
	if err != nil {
		t.Fatalf("Scan() unexpected error: %v", err)
	}

	if len(items) != 2 || items[0].ItemID != "boundary" || items[1].ItemID != "new" {
		t.Errorf("Scan() since %v returned wrong items: %+v", ts, items)
	}
}

func TestMemoryScanIncludesTombstones(t *testing.T) {
	store := NewMemoryItemStore()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, &model.Item{UserID: 1, ItemID: "dead", Deleted: true}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	items, err := store.Scan(ctx, 1, model.ScanPosition{}, 10)
	if err != nil {
		t.Fatalf("Scan() unexpected error: %v", err)
	}
	if len(items) != 1 || !items[0].Deleted {
		t.Errorf("Scan() should include tombstones, got %+v", items)
	}
}

func TestMemoryOwnerIsolation(t *testing.T) {
	store := NewMemoryItemStore()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, &model.Item{UserID: 1, ItemID: "shared-id"}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	if _, err := store.Get(ctx, 2, "shared-id"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Get() as other owner error = %v, want ErrItemNotFound", err)
	}

	items, err := store.Scan(ctx, 2, model.ScanPosition{}, 10)
	if err != nil {
		t.Fatalf("Scan() unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Scan() as other owner returned %d items, want 0", len(items))
	}
}

func TestMemoryListLiveExcludesTombstones(t *testing.T) {
	store := NewMemoryItemStore()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, &model.Item{UserID: 1, ItemID: "live"}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}
	if _, err := store.Upsert(ctx, &model.Item{UserID: 1, ItemID: "dead", Deleted: true}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	items, err := store.ListLive(ctx, 1)
	if err != nil {
		t.Fatalf("ListLive() unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ItemID != "live" {
		t.Errorf("ListLive() = %+v, want only the live item", items)
	}
}
