package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MaximoMartin/mambapp-sync/internal/record"
)

// setupTestStore creates a temporary database for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return st
}

func testMonitoring(id int64) *record.Monitoring {
	return &record.Monitoring{
		ID:                 id,
		RegistrationNumber: 1000 + id,
		PerformedDate:      "2024-03-11",
		PatientID:          1,
		DoctorID:           2,
		TechnicianID:       3,
		PlaceID:            1,
		PathologyID:        1,
		RequesterID:        1,
	}
}

func TestUpsertMonitoringNoDuplicates(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	m := testMonitoring(1)
	if err := st.UpsertMonitoring(ctx, m); err != nil {
		t.Fatalf("UpsertMonitoring failed: %v", err)
	}

	m.AnesthesiaDetail = "local"
	if err := st.UpsertMonitoring(ctx, m); err != nil {
		t.Fatalf("second UpsertMonitoring failed: %v", err)
	}

	count, err := st.CountMonitorings(ctx)
	if err != nil {
		t.Fatalf("CountMonitorings failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record after upsert, got %d", count)
	}

	got, err := st.GetMonitoring(ctx, 1)
	if err != nil {
		t.Fatalf("GetMonitoring failed: %v", err)
	}
	if got.AnesthesiaDetail != "local" {
		t.Errorf("expected updated anesthesia detail, got %q", got.AnesthesiaDetail)
	}
}

func TestGetMonitoringNotFound(t *testing.T) {
	st := setupTestStore(t)

	_, err := st.GetMonitoring(context.Background(), 99)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestOptionalEquipmentRoundTrip(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	withEquipment := testMonitoring(1)
	equipment := int64(7)
	withEquipment.EquipmentID = &equipment

	withoutEquipment := testMonitoring(2)

	for _, m := range []*record.Monitoring{withEquipment, withoutEquipment} {
		if err := st.UpsertMonitoring(ctx, m); err != nil {
			t.Fatalf("UpsertMonitoring failed: %v", err)
		}
	}

	got1, err := st.GetMonitoring(ctx, 1)
	if err != nil {
		t.Fatalf("GetMonitoring failed: %v", err)
	}
	if got1.EquipmentID == nil || *got1.EquipmentID != 7 {
		t.Errorf("expected equipment 7, got %v", got1.EquipmentID)
	}

	got2, err := st.GetMonitoring(ctx, 2)
	if err != nil {
		t.Fatalf("GetMonitoring failed: %v", err)
	}
	if got2.EquipmentID != nil {
		t.Errorf("expected absent equipment, got %d", *got2.EquipmentID)
	}
}

func TestListModifiedSince(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if err := st.UpsertMonitoring(ctx, testMonitoring(1)); err != nil {
		t.Fatalf("UpsertMonitoring failed: %v", err)
	}

	cutoff := time.Now().UnixMilli()
	time.Sleep(5 * time.Millisecond)

	if err := st.UpsertMonitoring(ctx, testMonitoring(2)); err != nil {
		t.Fatalf("UpsertMonitoring failed: %v", err)
	}

	changed, err := st.ListMonitoringsModifiedSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListMonitoringsModifiedSince failed: %v", err)
	}
	if len(changed) != 1 || changed[0].ID != 2 {
		t.Fatalf("expected only record 2 after cutoff, got %v", changed)
	}

	none, err := st.ListMonitoringsModifiedSince(ctx, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("ListMonitoringsModifiedSince failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no changes after now, got %d", len(none))
	}
}

func TestNextMonitoringID(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	id, err := st.NextMonitoringID(ctx)
	if err != nil {
		t.Fatalf("NextMonitoringID failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected first id 1, got %d", id)
	}

	if err := st.UpsertMonitoring(ctx, testMonitoring(5)); err != nil {
		t.Fatalf("UpsertMonitoring failed: %v", err)
	}

	id, err = st.NextMonitoringID(ctx)
	if err != nil {
		t.Fatalf("NextMonitoringID failed: %v", err)
	}
	if id != 6 {
		t.Errorf("expected next id 6, got %d", id)
	}
}

func TestSyncMetadataLifecycle(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	_, err := st.GetSyncMetadata(ctx, "monitorings")
	if !errors.Is(err, ErrMetadataNotFound) {
		t.Fatalf("expected ErrMetadataNotFound, got %v", err)
	}

	md := &SyncMetadata{
		Collection:    "monitorings",
		SpreadsheetID: "sheet-123",
		RangeExpr:     "Monitoreos!A2:T",
		Status:        StatusConfigured,
	}
	if err := st.PutSyncMetadata(ctx, md); err != nil {
		t.Fatalf("PutSyncMetadata failed: %v", err)
	}

	md.Status = StatusCompleted
	md.LastSyncMs = 1700000000000
	md.LastRowCount = 42
	if err := st.PutSyncMetadata(ctx, md); err != nil {
		t.Fatalf("PutSyncMetadata update failed: %v", err)
	}

	got, err := st.GetSyncMetadata(ctx, "monitorings")
	if err != nil {
		t.Fatalf("GetSyncMetadata failed: %v", err)
	}
	if got.Status != StatusCompleted || got.LastSyncMs != 1700000000000 || got.LastRowCount != 42 {
		t.Errorf("unexpected metadata: %+v", got)
	}
}

func TestPreferences(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	value, err := st.GetPreference(ctx, "sheets.spreadsheet_id")
	if err != nil {
		t.Fatalf("GetPreference failed: %v", err)
	}
	if value != "" {
		t.Errorf("expected empty value for unset key, got %q", value)
	}

	if err := st.SetPreference(ctx, "sheets.spreadsheet_id", "sheet-123"); err != nil {
		t.Fatalf("SetPreference failed: %v", err)
	}
	if err := st.SetPreference(ctx, "sheets.spreadsheet_id", "sheet-456"); err != nil {
		t.Fatalf("SetPreference overwrite failed: %v", err)
	}

	value, err = st.GetPreference(ctx, "sheets.spreadsheet_id")
	if err != nil {
		t.Fatalf("GetPreference failed: %v", err)
	}
	if value != "sheet-456" {
		t.Errorf("expected sheet-456, got %q", value)
	}
}

func TestResolveSnapshots(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if err := st.PutReference(ctx, RefDoctor, &Reference{ID: 2, Name: "Dr. Rivas"}); err != nil {
		t.Fatalf("PutReference failed: %v", err)
	}
	if err := st.PutReference(ctx, RefTechnician, &Reference{ID: 3, Name: "L. Ortega"}); err != nil {
		t.Fatalf("PutReference failed: %v", err)
	}

	m := testMonitoring(1)
	if err := st.ResolveSnapshots(ctx, m); err != nil {
		t.Fatalf("ResolveSnapshots failed: %v", err)
	}

	if m.DoctorSnapshot != "Dr. Rivas" {
		t.Errorf("expected doctor snapshot, got %q", m.DoctorSnapshot)
	}
	if m.TechnicianSnapshot != "L. Ortega" {
		t.Errorf("expected technician snapshot, got %q", m.TechnicianSnapshot)
	}
	// Requester 1 was never seeded; unknown ids resolve to empty labels.
	if m.RequesterSnapshot != "" {
		t.Errorf("expected empty requester snapshot, got %q", m.RequesterSnapshot)
	}
}

func TestPutReferenceRejectsUnknownKind(t *testing.T) {
	st := setupTestStore(t)

	err := st.PutReference(context.Background(), ReferenceKind("evil; DROP TABLE"), &Reference{ID: 1, Name: "x"})
	if err == nil {
		t.Fatal("expected error for unknown reference kind")
	}
}
