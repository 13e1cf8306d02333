package sync

import (
	"context"
	"fmt"

	"github.com/MaximoMartin/mambapp-sync/internal/record"
)

// detectLocalChanges returns records created or modified strictly after
// the given epoch-millis timestamp.
//
// Detection relies on the per-record updated_at timestamp the store
// maintains on every write; a plain collection snapshot carries no
// change-time attribute and cannot answer this question. An empty result
// means nothing changed since the last pass.
func (m *Manager) detectLocalChanges(ctx context.Context, sinceMillis int64) ([]*record.Monitoring, error) {
	changed, err := m.store.ListMonitoringsModifiedSince(ctx, sinceMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to detect local changes: %w", err)
	}
	return changed, nil
}
