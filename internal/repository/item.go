package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keywarden/keywarden-go/internal/model"
)

var ErrItemNotFound = errors.New("vault item not found")

const itemColumns = `id, user_id, item_id, username_data, password_data, domain_data, notes, deleted, created_at, updated_at`

// ItemRepository persists vault items in MySQL. Every query is scoped by
// user_id; an item belonging to another user is indistinguishable from a
// missing one.
type ItemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Get retrieves a vault item by owner and client-visible item ID,
// tombstones included.
func (r *ItemRepository) Get(ctx context.Context, userID int64, itemID string) (*model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items WHERE user_id = ? AND item_id = ?`

	item := &model.Item{}
	err := scanItem(r.db.QueryRowContext(ctx, query, userID, itemID), item)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

// Upsert is the sole mutation path for vault items. It runs as a single row
// transaction: the existing row (if any) is locked, the server timestamp is
// assigned, and the payload, deleted flag and updated_at are written
// atomically. The stamp is max(now, previous+1µs), so updated_at is strictly
// increasing per item even if the wall clock steps backwards. Returns the
// item as stored.
//
// Two devices can race an insert for the same fresh (user_id, item_id); the
// loser hits the unique key and retries, finding the winner's row and taking
// the update branch. Both writes succeed, the later one wins.
func (r *ItemRepository) Upsert(ctx context.Context, item *model.Item) (*model.Item, error) {
	const maxAttempts = 3

	var (
		stored *model.Item
		err    error
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		stored, err = r.upsertOnce(ctx, item)
		if err == nil || !isDuplicateEntryError(err) {
			return stored, err
		}
	}
	return stored, err
}

func (r *ItemRepository) upsertOnce(ctx context.Context, item *model.Item) (*model.Item, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	var (
		rowID     int64
		createdAt time.Time
		updatedAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM vault_items WHERE user_id = ? AND item_id = ? FOR UPDATE`,
		item.UserID, item.ItemID,
	).Scan(&rowID, &createdAt, &updatedAt)

	now := time.Now().UTC().Truncate(time.Microsecond)

	stored := *item
	switch {
	case errors.Is(err, sql.ErrNoRows):
		stored.CreatedAt = now
		stored.UpdatedAt = now

		res, err := tx.ExecContext(ctx,
			`INSERT INTO vault_items (user_id, item_id, username_data, password_data, domain_data, notes, deleted, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.UserID, stored.ItemID, stored.UsernameData, stored.PasswordData, stored.DomainData,
			stored.Notes, stored.Deleted, stored.CreatedAt, stored.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert item: %w", err)
		}
		if stored.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("insert item id: %w", err)
		}

	case err != nil:
		return nil, fmt.Errorf("lock item: %w", err)

	default:
		ts := now
		if !ts.After(updatedAt) {
			ts = updatedAt.Add(time.Microsecond)
		}
		stored.ID = rowID
		stored.CreatedAt = createdAt
		stored.UpdatedAt = ts

		_, err := tx.ExecContext(ctx,
			`UPDATE vault_items SET username_data = ?, password_data = ?, domain_data = ?, notes = ?, deleted = ?, updated_at = ?
			 WHERE id = ?`,
			stored.UsernameData, stored.PasswordData, stored.DomainData, stored.Notes,
			stored.Deleted, stored.UpdatedAt, rowID,
		)
		if err != nil {
			return nil, fmt.Errorf("update item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}

	return &stored, nil
}

// Scan returns up to limit items for a user in ascending (updated_at,
// item_id) order, tombstones included. The position selects the starting
// point: a cursor watermark resumes strictly after (AfterTime, AfterID),
// otherwise a non-zero Since bounds the scan to updated_at >= Since.
func (r *ItemRepository) Scan(ctx context.Context, userID int64, pos model.ScanPosition, limit int) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items WHERE user_id = ?`
	args := []any{userID}

	switch {
	case pos.HasAfter:
		query += ` AND (updated_at > ? OR (updated_at = ? AND item_id > ?))`
		args = append(args, pos.AfterTime, pos.AfterTime, pos.AfterID)
	case !pos.Since.IsZero():
		query += ` AND updated_at >= ?`
		args = append(args, pos.Since)
	}

	query += ` ORDER BY updated_at ASC, item_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan items: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ListLive returns all non-deleted items for a user, most recently updated
// first.
func (r *ItemRepository) ListLive(ctx context.Context, userID int64) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items WHERE user_id = ? AND deleted = FALSE ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner, item *model.Item) error {
	return row.Scan(
		&item.ID, &item.UserID, &item.ItemID,
		&item.UsernameData, &item.PasswordData, &item.DomainData, &item.Notes,
		&item.Deleted, &item.CreatedAt, &item.UpdatedAt,
	)
}
