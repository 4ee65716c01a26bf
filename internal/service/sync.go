package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keywarden/keywarden-go/internal/cursor"
	"github.com/keywarden/keywarden-go/internal/model"
	"github.com/keywarden/keywarden-go/internal/repository"
)

var (
	ErrItemIDRequired = errors.New("item id is required")
	ErrItemIDTooLong  = errors.New("item id exceeds 36 characters")
	ErrItemNotFound   = errors.New("vault item not found")
)

// DefaultPageSize is used when a pull request does not ask for a limit.
const DefaultPageSize = 100

// ItemStore is the persistence contract the sync engines run against.
// Implemented by repository.ItemRepository (MySQL) and
// repository.MemoryItemStore.
type ItemStore interface {
	Get(ctx context.Context, userID int64, itemID string) (*model.Item, error)
	Upsert(ctx context.Context, item *model.Item) (*model.Item, error)
	Scan(ctx context.Context, userID int64, pos model.ScanPosition, limit int) ([]model.Item, error)
	ListLive(ctx context.Context, userID int64) ([]model.Item, error)
}

// SyncService implements the incremental sync protocol: a paginated pull of
// changed items (tombstones included) and a push that reconciles
// client-proposed mutations with last-write-wins semantics. The server is
// the sole authority: every accepted write is stamped with the server
// clock, and client timestamps are advisory.
type SyncService struct {
	store       ItemStore
	codec       *cursor.Codec
	maxPageSize int
}

// NewSyncService creates a SyncService. maxPageSize caps the pull page size
// regardless of what clients request.
func NewSyncService(store ItemStore, codec *cursor.Codec, maxPageSize int) *SyncService {
	return &SyncService{store: store, codec: codec, maxPageSize: maxPageSize}
}

// GetChanges returns one page of the owner's change feed in ascending
// (updated_at, item_id) order. A cursor resumes strictly after its
// watermark and takes precedence over Since; neither means full history.
// NextCursor is set iff more pages remain.
func (s *SyncService) GetChanges(ctx context.Context, userID int64, q model.ChangesQuery) (model.ChangesResponse, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	var pos model.ScanPosition
	switch {
	case q.Cursor != "":
		ts, id, err := s.codec.Decode(q.Cursor)
		if err != nil {
			return model.ChangesResponse{}, fmt.Errorf("decoding cursor: %w", err)
		}
		pos.HasAfter, pos.AfterTime, pos.AfterID = true, ts, id
	case q.Since != nil:
		pos.Since = q.Since.UTC()
	}

	// Fetch one extra row to learn whether another page exists.
	items, err := s.store.Scan(ctx, userID, pos, limit+1)
	if err != nil {
		return model.ChangesResponse{}, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	resp := model.ChangesResponse{
		Items:   make([]model.ChangeItem, len(items)),
		HasMore: hasMore,
	}
	for i, item := range items {
		resp.Items[i] = model.ChangeItem{
			ItemID:      item.ItemID,
			ItemPayload: encodePayload(&item),
			UpdatedAt:   item.UpdatedAt,
			Deleted:     item.Deleted,
		}
	}

	if hasMore {
		last := items[len(items)-1]
		resp.NextCursor = s.codec.Encode(last.UpdatedAt, last.ItemID)
	}

	return resp, nil
}

// Push reconciles a batch of proposed mutations against server state. Each
// mutation is resolved independently — a per-item failure is reported in
// its result and never aborts the rest of the batch. Only a store-level
// fault fails the whole call; mutations already applied at that point stay
// applied. Results come back in input order.
func (s *SyncService) Push(ctx context.Context, userID int64, req model.PushRequest) (model.PushResponse, error) {
	results := make([]model.MutationResult, 0, len(req.Mutations))

	for _, m := range req.Mutations {
		result, err := s.apply(ctx, userID, m)
		if err != nil {
			return model.PushResponse{}, err
		}
		results = append(results, result)
	}

	return model.PushResponse{Results: results}, nil
}

// apply resolves a single mutation. The returned error is reserved for
// infrastructure faults; every protocol-level problem becomes a failed
// result.
func (s *SyncService) apply(ctx context.Context, userID int64, m model.Mutation) (model.MutationResult, error) {
	if m.Op != model.OpCreate && m.ItemID == "" {
		return failedResult(m.ItemID, ErrItemIDRequired.Error()), nil
	}
	if len(m.ItemID) > 36 {
		return failedResult(m.ItemID, ErrItemIDTooLong.Error()), nil
	}

	switch m.Op {
	case model.OpCreate:
		return s.applyCreate(ctx, userID, m)
	case model.OpUpdate:
		return s.applyUpdate(ctx, userID, m)
	case model.OpDelete:
		return s.applyDelete(ctx, userID, m)
	default:
		return failedResult(m.ItemID, fmt.Sprintf("unknown operation %q", m.Op)), nil
	}
}

func (s *SyncService) applyCreate(ctx context.Context, userID int64, m model.Mutation) (model.MutationResult, error) {
	itemID := m.ItemID
	if itemID == "" {
		itemID = uuid.NewString()
	}

	item, reason := decodePayload(userID, itemID, m.ItemPayload)
	if reason != "" {
		return failedResult(itemID, reason), nil
	}

	existing, err := s.store.Get(ctx, userID, itemID)
	switch {
	case errors.Is(err, repository.ErrItemNotFound):
		stored, err := s.store.Upsert(ctx, item)
		if err != nil {
			return model.MutationResult{}, err
		}
		return appliedResult(itemID, model.StatusCreated, stored.UpdatedAt), nil

	case err != nil:
		return model.MutationResult{}, err
	}

	// The id already exists: the stored item wins unless the client's
	// advisory timestamp says its copy is strictly newer, which covers a
	// fresh device re-creating ids the server already holds.
	if m.UpdatedAt == nil || !m.UpdatedAt.After(existing.UpdatedAt) {
		return failedResult(itemID, "item already exists with newer server state"), nil
	}

	stored, err := s.store.Upsert(ctx, item)
	if err != nil {
		return model.MutationResult{}, err
	}
	slog.Info("create overwrote existing item", "item_id", itemID, "user_id", userID)
	return appliedResult(itemID, model.StatusUpdated, stored.UpdatedAt), nil
}

func (s *SyncService) applyUpdate(ctx context.Context, userID int64, m model.Mutation) (model.MutationResult, error) {
	if _, err := s.store.Get(ctx, userID, m.ItemID); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return failedResult(m.ItemID, ErrItemNotFound.Error()), nil
		}
		return model.MutationResult{}, err
	}

	item, reason := decodePayload(userID, m.ItemID, m.ItemPayload)
	if reason != "" {
		return failedResult(m.ItemID, reason), nil
	}

	// Last write wins unconditionally, and updating a tombstone resurrects
	// it: Deleted is forced false by the fresh item value.
	stored, err := s.store.Upsert(ctx, item)
	if err != nil {
		return model.MutationResult{}, err
	}
	return appliedResult(m.ItemID, model.StatusUpdated, stored.UpdatedAt), nil
}

func (s *SyncService) applyDelete(ctx context.Context, userID int64, m model.Mutation) (model.MutationResult, error) {
	_, err := s.store.Get(ctx, userID, m.ItemID)
	if err != nil && !errors.Is(err, repository.ErrItemNotFound) {
		return model.MutationResult{}, err
	}

	// Deleting an unknown id still writes a tombstone so the deletion
	// propagates to devices that do hold the item. Payload is cleared on
	// delete; only id, owner and timestamps are retained.
	stored, err := s.store.Upsert(ctx, tombstone(userID, m.ItemID))
	if err != nil {
		return model.MutationResult{}, err
	}
	return appliedResult(m.ItemID, model.StatusDeleted, stored.UpdatedAt), nil
}

func tombstone(userID int64, itemID string) *model.Item {
	return &model.Item{
		UserID:       userID,
		ItemID:       itemID,
		UsernameData: []byte{},
		PasswordData: []byte{},
		DomainData:   []byte{},
		Notes:        []byte{},
		Deleted:      true,
	}
}

func appliedResult(itemID, status string, updatedAt time.Time) model.MutationResult {
	return model.MutationResult{ItemID: itemID, Status: status, UpdatedAt: &updatedAt}
}

func failedResult(itemID, reason string) model.MutationResult {
	return model.MutationResult{ItemID: itemID, Status: model.StatusFailed, Error: reason}
}

// decodePayload converts wire payload fields into a live item. A non-empty
// reason means the payload was rejected and the mutation should fail.
func decodePayload(userID int64, itemID string, p model.ItemPayload) (*model.Item, string) {
	item := &model.Item{UserID: userID, ItemID: itemID}

	for _, f := range []struct {
		name string
		src  string
		dst  *[]byte
	}{
		{"username_data", p.UsernameData, &item.UsernameData},
		{"password_data", p.PasswordData, &item.PasswordData},
		{"domain_data", p.DomainData, &item.DomainData},
		{"notes", p.Notes, &item.Notes},
	} {
		data, err := base64.StdEncoding.DecodeString(f.src)
		if err != nil {
			return nil, fmt.Sprintf("invalid base64 in %s", f.name)
		}
		if data == nil {
			data = []byte{}
		}
		*f.dst = data
	}

	return item, ""
}

func encodePayload(item *model.Item) model.ItemPayload {
	return model.ItemPayload{
		UsernameData: base64.StdEncoding.EncodeToString(item.UsernameData),
		PasswordData: base64.StdEncoding.EncodeToString(item.PasswordData),
		DomainData:   base64.StdEncoding.EncodeToString(item.DomainData),
		Notes:        base64.StdEncoding.EncodeToString(item.Notes),
	}
}
