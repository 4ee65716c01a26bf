package service

import (
	"context"
	"errors"
	"testing"

	"github.com/keywarden/keywarden-go/internal/model"
)

func TestListItemsExcludesTombstones(t *testing.T) {
	svc, _ := newTestSyncService(1000)

	mustPush(t, svc, 1,
		model.Mutation{ItemID: "live", Op: model.OpCreate, ItemPayload: testPayload("a", "b")},
		model.Mutation{ItemID: "gone", Op: model.OpCreate, ItemPayload: testPayload("c", "d")},
		model.Mutation{ItemID: "gone", Op: model.OpDelete},
	)

	items, err := svc.ListItems(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListItems() unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ItemID != "live" {
		t.Errorf("ListItems() = %+v, want only the live item", items)
	}
}

func TestDeleteItemNotFound(t *testing.T) {
	svc, _ := newTestSyncService(1000)

	err := svc.DeleteItem(context.Background(), 1, "missing")
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("DeleteItem() error = %v, want ErrItemNotFound", err)
	}
}

func TestDeleteItemEmptyID(t *testing.T) {
	svc, _ := newTestSyncService(1000)

	err := svc.DeleteItem(context.Background(), 1, "")
	if !errors.Is(err, ErrItemIDRequired) {
		t.Errorf("DeleteItem() error = %v, want ErrItemIDRequired", err)
	}
}

func TestDeleteItemTombstonesAndHidesFromList(t *testing.T) {
	svc, _ := newTestSyncService(1000)
	ctx := context.Background()

	mustPush(t, svc, 1, model.Mutation{ItemID: "item-1", Op: model.OpCreate, ItemPayload: testPayload("a", "b")})

	if err := svc.DeleteItem(ctx, 1, "item-1"); err != nil {
		t.Fatalf("DeleteItem() unexpected error: %v", err)
	}

	items, err := svc.ListItems(ctx, 1)
	if err != nil {
		t.Fatalf("ListItems() unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("deleted item still listed: %+v", items)
	}

	// The tombstone must still flow through the change feed.
	changes, err := svc.GetChanges(ctx, 1, model.ChangesQuery{})
	if err != nil {
		t.Fatalf("GetChanges() unexpected error: %v", err)
	}
	if len(changes.Items) != 1 || !changes.Items[0].Deleted {
		t.Errorf("expected a tombstone in the change feed, got %+v", changes.Items)
	}
}
