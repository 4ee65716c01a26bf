package service

import (
	"context"
	"errors"

	"github.com/keywarden/keywarden-go/internal/model"
	"github.com/keywarden/keywarden-go/internal/repository"
)

// ListItems returns all live (non-deleted) items for a user, most recently
// updated first.
func (s *SyncService) ListItems(ctx context.Context, userID int64) ([]model.ItemResponse, error) {
	items, err := s.store.ListLive(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]model.ItemResponse, len(items))
	for i, item := range items {
		result[i] = model.ItemResponse{
			ItemID:      item.ItemID,
			ItemPayload: encodePayload(&item),
			CreatedAt:   item.CreatedAt,
			UpdatedAt:   item.UpdatedAt,
		}
	}
	return result, nil
}

// DeleteItem tombstones a single item through the same reconcile path as a
// pushed delete. Unlike a pushed delete, deleting an id the user has never
// stored reports ErrItemNotFound.
func (s *SyncService) DeleteItem(ctx context.Context, userID int64, itemID string) error {
	if itemID == "" {
		return ErrItemIDRequired
	}

	if _, err := s.store.Get(ctx, userID, itemID); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrItemNotFound
		}
		return err
	}

	_, err := s.store.Upsert(ctx, tombstone(userID, itemID))
	return err
}
