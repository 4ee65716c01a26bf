package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/keywarden/keywarden-go/internal/model"
)

// MemoryItemStore is an in-memory ItemRepository equivalent used by tests
// and DB-less development. It honors the same contract: owner-scoped
// access, strictly increasing per-item timestamps, tombstone retention and
// (updated_at, item_id) scan order.
type MemoryItemStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]map[string]model.Item
}

// NewMemoryItemStore creates an empty MemoryItemStore.
func NewMemoryItemStore() *MemoryItemStore {
	return &MemoryItemStore{items: make(map[int64]map[string]model.Item)}
}

// Get retrieves an item by owner and item ID, tombstones included.
func (s *MemoryItemStore) Get(ctx context.Context, userID int64, itemID string) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[userID][itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

// Upsert inserts or overwrites an item under the store lock, assigning the
// server timestamp exactly like the MySQL implementation.
func (s *MemoryItemStore) Upsert(ctx context.Context, item *model.Item) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.items[item.UserID]
	if owned == nil {
		owned = make(map[string]model.Item)
		s.items[item.UserID] = owned
	}

	now := time.Now().UTC().Truncate(time.Microsecond)

	stored := *item
	if existing, ok := owned[item.ItemID]; ok {
		ts := now
		if !ts.After(existing.UpdatedAt) {
			ts = existing.UpdatedAt.Add(time.Microsecond)
		}
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = ts
	} else {
		s.nextID++
		stored.ID = s.nextID
		stored.CreatedAt = now
		stored.UpdatedAt = now
	}

	owned[item.ItemID] = stored
	return &stored, nil
}

// Seed inserts items verbatim, preserving their timestamps. Intended for
// tests that need a fixed change-feed history.
func (s *MemoryItemStore) Seed(items ...model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		owned := s.items[item.UserID]
		if owned == nil {
			owned = make(map[string]model.Item)
			s.items[item.UserID] = owned
		}
		s.nextID++
		item.ID = s.nextID
		owned[item.ItemID] = item
	}
}

// Scan returns up to limit items in ascending (updated_at, item_id) order,
// starting at the given position.
func (s *MemoryItemStore) Scan(ctx context.Context, userID int64, pos model.ScanPosition, limit int) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []model.Item
	for _, item := range s.items[userID] {
		switch {
		case pos.HasAfter:
			if item.UpdatedAt.Before(pos.AfterTime) {
				continue
			}
			if item.UpdatedAt.Equal(pos.AfterTime) && item.ItemID <= pos.AfterID {
				continue
			}
		case !pos.Since.IsZero():
			if item.UpdatedAt.Before(pos.Since) {
				continue
			}
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.Before(items[j].UpdatedAt)
		}
		return items[i].ItemID < items[j].ItemID
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ListLive returns all non-deleted items, most recently updated first.
func (s *MemoryItemStore) ListLive(ctx context.Context, userID int64) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []model.Item
	for _, item := range s.items[userID] {
		if !item.Deleted {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items, nil
}
