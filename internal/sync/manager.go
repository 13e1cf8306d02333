// Package sync implements the synchronization subsystem: change
// detection, merge resolution, and the orchestrator that reconciles the
// local monitoring store with a remote spreadsheet.
//
// The orchestrator is a state machine over {Idle, InProgress, Success,
// Error}. A full pass mirrors the merged record set to the remote range;
// a quick pass is a one-directional append-only push of local changes.
// Passes are serialized: a trigger while another pass is in progress is
// rejected with ErrSyncInProgress.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/MaximoMartin/mambapp-sync/internal/record"
	"github.com/MaximoMartin/mambapp-sync/internal/sheets"
	"github.com/MaximoMartin/mambapp-sync/internal/store"
)

const (
	// Collection is the local collection name keyed in sync metadata.
	Collection = "monitorings"

	// DataRange addresses the data rows, excluding the header row.
	DataRange = "Monitoreos!A2:T"

	// AppendRange spans all columns and is the target for append pushes.
	AppendRange = "Monitoreos!A:T"

	// PrefSpreadsheetID is the preference key holding the configured
	// spreadsheet id.
	PrefSpreadsheetID = "sheets.spreadsheet_id"
)

// ErrSyncInProgress is returned when a sync trigger arrives while
// another pass is executing.
var ErrSyncInProgress = errors.New("sync already in progress")

// Config holds orchestrator tuning knobs.
type Config struct {
	// ErrorCooldown is how long the auto-sync loop waits after a failed
	// pass before retrying, instead of the normal interval.
	ErrorCooldown time.Duration

	// Logger for sync activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ErrorCooldown: 30 * time.Second,
		Logger:        log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Manager drives sync passes against one spreadsheet collection.
//
// All exported methods are safe for concurrent use. Status and last-sync
// time may be read from any goroutine; only the execution path of a pass
// writes them.
type Manager struct {
	store   *store.Store
	gateway sheets.Gateway
	config  *Config

	mu       sync.Mutex
	status   Status
	lastSync time.Time
	subs     map[int]chan Status
	nextSub  int

	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// New creates a Manager. The store must be opened and have its schema
// initialized. If config is nil, defaults are used.
func New(st *store.Store, gw sheets.Gateway, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Manager{
		store:   st,
		gateway: gw,
		config:  config,
		status:  Status{Kind: StatusIdle, At: time.Now()},
		subs:    make(map[int]chan Status),
	}
}

// Status returns the current sync status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastSyncTime returns the completion time of the last successful pass,
// or the zero time if none succeeded yet.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}

// Subscribe registers a status observer. The returned channel receives
// every status transition; slow observers miss updates rather than block
// a pass. Call the cancel function to unsubscribe.
func (m *Manager) Subscribe() (<-chan Status, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Status, 8)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// setStatus publishes a status transition to all observers.
// Caller must hold m.mu.
func (m *Manager) setStatus(s Status) {
	s.At = time.Now()
	m.status = s
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// begin claims the single run slot and transitions to InProgress.
// Returns ErrSyncInProgress if a pass is already executing.
func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Kind == StatusInProgress {
		return ErrSyncInProgress
	}
	m.setStatus(Status{Kind: StatusInProgress})
	return nil
}

// finish releases the run slot with the pass outcome. The status never
// stays InProgress, including on cancellation.
func (m *Manager) finish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.setStatus(Status{Kind: StatusError, Message: err.Error()})
		return
	}
	m.lastSync = time.Now()
	m.setStatus(Status{Kind: StatusSuccess})
}

// SetupSync validates reachability of the target spreadsheet, persists
// its id as the configured spreadsheet, and creates the metadata entry
// with status CONFIGURED.
//
// A failed reachability check aborts with no state change.
func (m *Manager) SetupSync(ctx context.Context, spreadsheetID string) error {
	if spreadsheetID == "" {
		return sheets.NewFailure(sheets.KindConfig, "spreadsheet id is required", nil)
	}

	info, err := m.gateway.Metadata(ctx, spreadsheetID)
	if err != nil {
		return fmt.Errorf("spreadsheet %s is not reachable: %w", spreadsheetID, err)
	}
	m.config.Logger.Printf("Configuring sync against %q (%d sheets)", info.Title, len(info.SheetNames))

	if err := m.store.SetPreference(ctx, PrefSpreadsheetID, spreadsheetID); err != nil {
		return err
	}

	md := &store.SyncMetadata{
		Collection:    Collection,
		LastSyncMs:    0,
		SpreadsheetID: spreadsheetID,
		RangeExpr:     DataRange,
		LastRowCount:  0,
		Status:        store.StatusConfigured,
	}
	if err := m.store.PutSyncMetadata(ctx, md); err != nil {
		return err
	}

	m.config.Logger.Printf("Sync configured: collection=%s spreadsheet=%s", Collection, spreadsheetID)
	return nil
}

// FullSync performs a complete bidirectional pass: download the remote
// rows, merge with local changes (local wins by id), rewrite the remote
// range as an exact mirror of the merged set, persist the merged set
// locally, and update the sync metadata.
//
// Any failure leaves the metadata untouched so the next attempt retries
// from the same baseline.
func (m *Manager) FullSync(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}

	err := m.fullPass(ctx)
	m.finish(err)
	return err
}

func (m *Manager) fullPass(ctx context.Context) error {
	start := time.Now()
	m.config.Logger.Printf("Starting full sync")

	spreadsheetID, err := m.resolveSpreadsheetID(ctx)
	if err != nil {
		return err
	}

	// Download and decode the remote snapshot. Malformed rows are logged
	// and skipped; one bad manual edit must not abort the pass.
	rows, err := m.gateway.ReadRange(ctx, spreadsheetID, DataRange)
	if err != nil {
		return err
	}
	remote := record.DecodeRows(rows, m.config.Logger)
	m.config.Logger.Printf("Downloaded %d rows, decoded %d records", len(rows), len(remote))

	sinceMs := int64(0)
	if md, err := m.store.GetSyncMetadata(ctx, Collection); err == nil {
		sinceMs = md.LastSyncMs
	} else if !errors.Is(err, store.ErrMetadataNotFound) {
		return err
	}

	local, err := m.detectLocalChanges(ctx, sinceMs)
	if err != nil {
		return err
	}
	m.config.Logger.Printf("Detected %d local changes since %d", len(local), sinceMs)

	merged := Merge(remote, local)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Mirror rewrite: clear then write, never append, so the remote range
	// is exactly the merged set afterwards.
	if err := m.gateway.ClearRange(ctx, spreadsheetID, DataRange); err != nil {
		return err
	}
	if err := m.gateway.WriteRange(ctx, spreadsheetID, DataRange, record.EncodeRows(merged)); err != nil {
		return err
	}

	for _, rec := range merged {
		if err := m.store.UpsertMonitoring(ctx, rec); err != nil {
			return err
		}
	}

	// Metadata is written only after the full write stage completed.
	// The timestamp is the completion time so the local upserts above are
	// not re-detected as changes by the next quick pass.
	md := &store.SyncMetadata{
		Collection:    Collection,
		LastSyncMs:    time.Now().UnixMilli(),
		SpreadsheetID: spreadsheetID,
		RangeExpr:     DataRange,
		LastRowCount:  len(merged),
		Status:        store.StatusCompleted,
	}
	if err := m.store.PutSyncMetadata(ctx, md); err != nil {
		return err
	}

	m.config.Logger.Printf("Full sync complete: %d records in %v", len(merged), time.Since(start).Round(time.Millisecond))
	return nil
}

// QuickSync performs a one-directional append-only push of local changes
// since the last recorded sync. It never downloads or merges remote data,
// which keeps frequent background runs cheap. When nothing changed, no
// remote call is made and the pass still succeeds.
func (m *Manager) QuickSync(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}

	err := m.quickPass(ctx)
	m.finish(err)
	return err
}

func (m *Manager) quickPass(ctx context.Context) error {
	spreadsheetID, err := m.resolveSpreadsheetID(ctx)
	if err != nil {
		return err
	}

	md, err := m.store.GetSyncMetadata(ctx, Collection)
	if err != nil {
		if errors.Is(err, store.ErrMetadataNotFound) {
			return sheets.NewFailure(sheets.KindConfig, "sync has not been configured for "+Collection, err)
		}
		return err
	}

	changes, err := m.detectLocalChanges(ctx, md.LastSyncMs)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		m.config.Logger.Printf("Quick sync: no local changes")
		return nil
	}

	if err := m.gateway.AppendRows(ctx, spreadsheetID, AppendRange, record.EncodeRows(changes)); err != nil {
		return err
	}

	md.LastSyncMs = time.Now().UnixMilli()
	md.LastRowCount += len(changes)
	md.Status = store.StatusCompleted
	if err := m.store.PutSyncMetadata(ctx, md); err != nil {
		return err
	}

	m.config.Logger.Printf("Quick sync: pushed %d changed records", len(changes))
	return nil
}

// resolveSpreadsheetID loads the configured spreadsheet id, failing fast
// before any remote I/O when unconfigured.
func (m *Manager) resolveSpreadsheetID(ctx context.Context) (string, error) {
	id, err := m.store.GetPreference(ctx, PrefSpreadsheetID)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", sheets.NewFailure(sheets.KindConfig, "no spreadsheet configured, run setup first", nil)
	}
	return id, nil
}

// StartAutoSync launches the long-lived loop that performs a quick sync
// at the given interval. A failed pass shortens the wait to the error
// cooldown. The loop runs until StopAutoSync is called. Calling
// StartAutoSync while a loop is running restarts it with the new
// interval.
func (m *Manager) StartAutoSync(interval time.Duration) {
	m.StopAutoSync()

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.loopCancel = cancel
	m.mu.Unlock()

	m.loopWG.Add(1)
	go m.autoSyncLoop(ctx, interval)

	m.config.Logger.Printf("Auto-sync started, interval=%v", interval)
}

// StopAutoSync cancels the auto-sync loop and waits for it to exit.
// Safe to call when no loop is running.
func (m *Manager) StopAutoSync() {
	m.mu.Lock()
	cancel := m.loopCancel
	m.loopCancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.loopWG.Wait()
	m.config.Logger.Printf("Auto-sync stopped")
}

func (m *Manager) autoSyncLoop(ctx context.Context, interval time.Duration) {
	defer m.loopWG.Done()

	for {
		wait := interval
		if err := m.QuickSync(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			// A concurrent manual pass owns this cycle; keep the normal
			// cadence. Any other failure retries after the cooldown.
			if !errors.Is(err, ErrSyncInProgress) {
				m.config.Logger.Printf("Auto-sync pass failed: %v", err)
				wait = m.config.ErrorCooldown
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
