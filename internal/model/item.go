package model

import "time"

// Mutation operations accepted by the push endpoint.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Per-item outcome statuses reported by the push endpoint.
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusDeleted = "deleted"
	StatusFailed  = "failed"
)

// Item represents a synchronized vault item in the database. Payload fields
// are ciphertext produced by the client; the server never interprets them.
// Deleted items are tombstones: the row is kept so the deletion propagates
// to other devices.
type Item struct {
	ID           int64
	UserID       int64
	ItemID       string
	UsernameData []byte
	PasswordData []byte
	DomainData   []byte
	Notes        []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Deleted      bool
}

// ItemPayload carries the encrypted fields of an item on the wire,
// base64 encoded.
type ItemPayload struct {
	UsernameData string `json:"username_data"`
	PasswordData string `json:"password_data"`
	DomainData   string `json:"domain_data"`
	Notes        string `json:"notes"`
}

// ChangeItem is a single entry in the change feed, tombstones included.
type ChangeItem struct {
	ItemID string `json:"id"`
	ItemPayload
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

// ChangesQuery is the parsed input of a pull request. Cursor takes
// precedence over Since; both absent means full history.
type ChangesQuery struct {
	Since  *time.Time
	Cursor string
	Limit  int
}

// ChangesResponse is one page of the change feed. NextCursor is present
// iff HasMore.
type ChangesResponse struct {
	Items      []ChangeItem `json:"items"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// Mutation is a single client-proposed change in a push batch. UpdatedAt is
// the client's clock and is advisory only — the server assigns its own
// timestamp to every accepted write.
type Mutation struct {
	ItemID string `json:"id"`
	Op     string `json:"op"`
	ItemPayload
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// PushRequest is a batch of proposed mutations, resolved independently.
type PushRequest struct {
	Mutations []Mutation `json:"mutations"`
}

// MutationResult reports the outcome of one mutation. UpdatedAt carries the
// server-assigned timestamp for applied mutations so the client can
// reconcile its local watermark.
type MutationResult struct {
	ItemID    string     `json:"id"`
	Status    string     `json:"status"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// PushResponse holds per-item outcomes in the same order as the request
// batch.
type PushResponse struct {
	Results []MutationResult `json:"results"`
}

// ItemResponse is a live item as returned by the vault listing.
type ItemResponse struct {
	ItemID string `json:"id"`
	ItemPayload
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScanPosition tells the item store where a change-feed scan starts.
// When HasAfter is set, the scan resumes strictly after the (AfterTime,
// AfterID) watermark; otherwise a non-zero Since bounds the scan to
// updated_at >= Since. AfterID may be empty, so HasAfter is the
// discriminator, not the id.
type ScanPosition struct {
	Since     time.Time
	HasAfter  bool
	AfterTime time.Time
	AfterID   string
}
