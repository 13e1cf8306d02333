package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SyncStatus is the persisted lifecycle status of a synchronized
// collection. The full value set is shared with other readers of the
// database; this subsystem itself only writes CONFIGURED (after setup)
// and COMPLETED (after a successful pass). In-memory pass state lives
// in the sync manager, and a failed pass leaves the persisted row
// untouched, so PENDING, IN_PROGRESS and ERROR are read but never
// written here.
type SyncStatus string

const (
	StatusPending    SyncStatus = "PENDING"
	StatusInProgress SyncStatus = "IN_PROGRESS"
	StatusCompleted  SyncStatus = "COMPLETED"
	StatusError      SyncStatus = "ERROR"
	StatusConfigured SyncStatus = "CONFIGURED"
)

// SyncMetadata is the per-collection sync bookkeeping row. It is created
// on first configuration, updated at the end of every successful sync
// attempt, and left untouched on failure so retries keep the same
// baseline.
type SyncMetadata struct {
	Collection    string
	LastSyncMs    int64
	SpreadsheetID string
	RangeExpr     string
	LastRowCount  int
	Status        SyncStatus
}

// ErrMetadataNotFound is returned when a collection has no sync
// metadata yet.
var ErrMetadataNotFound = errors.New("sync metadata not found")

// GetSyncMetadata retrieves the metadata row for a collection.
func (st *Store) GetSyncMetadata(ctx context.Context, collection string) (*SyncMetadata, error) {
	query := `
	SELECT collection, last_sync_ms, spreadsheet_id, range_expr, last_row_count, status
	FROM sync_metadata WHERE collection = ?`

	var md SyncMetadata
	var status string
	err := st.conn.QueryRowContext(ctx, query, collection).Scan(
		&md.Collection,
		&md.LastSyncMs,
		&md.SpreadsheetID,
		&md.RangeExpr,
		&md.LastRowCount,
		&status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMetadataNotFound, collection)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync metadata for %s: %w", collection, err)
	}

	md.Status = SyncStatus(status)
	return &md, nil
}

// PutSyncMetadata creates or overwrites the metadata row for a
// collection.
func (st *Store) PutSyncMetadata(ctx context.Context, md *SyncMetadata) error {
	if md.Collection == "" {
		return fmt.Errorf("collection is required")
	}

	query := `
	INSERT INTO sync_metadata (collection, last_sync_ms, spreadsheet_id, range_expr, last_row_count, status)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(collection) DO UPDATE SET
		last_sync_ms = excluded.last_sync_ms,
		spreadsheet_id = excluded.spreadsheet_id,
		range_expr = excluded.range_expr,
		last_row_count = excluded.last_row_count,
		status = excluded.status
	`

	_, err := st.conn.ExecContext(ctx, query,
		md.Collection,
		md.LastSyncMs,
		md.SpreadsheetID,
		md.RangeExpr,
		md.LastRowCount,
		string(md.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sync metadata for %s: %w", md.Collection, err)
	}
	return nil
}

// DeleteSyncMetadata removes the metadata row for a collection.
// Only used on explicit reconfiguration. Idempotent.
func (st *Store) DeleteSyncMetadata(ctx context.Context, collection string) error {
	if _, err := st.conn.ExecContext(ctx, "DELETE FROM sync_metadata WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("failed to delete sync metadata for %s: %w", collection, err)
	}
	return nil
}

// GetPreference returns the value for a preference key, or the empty
// string when the key is not set.
func (st *Store) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := st.conn.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query preference %s: %w", key, err)
	}
	return value, nil
}

// SetPreference durably stores a preference key/value pair.
func (st *Store) SetPreference(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO preferences (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := st.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}
