// Package store provides the embedded SQLite persistence layer for
// monitoring records, reference entities, sync metadata and preferences.
//
// The database runs in embedded mode with WAL for concurrent reads.
// Every write to a monitoring row maintains an updated_at timestamp
// (epoch millis) which drives incremental change detection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/MaximoMartin/mambapp-sync/internal/record"
)

// Store wraps the SQLite connection with domain-specific queries.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// If the database doesn't exist it is created; call InitSchema before
// first use. The caller MUST call Close when done.
//
// Example:
//
//	st, err := store.Open(".mambapp/monitorings.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{conn: conn, path: path}

	// WAL for concurrent reads during sync passes.
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := st.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return st, nil
}

// Close closes the database connection after checkpointing the WAL.
func (st *Store) Close() error {
	if st.conn == nil {
		return nil
	}

	if _, err := st.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := st.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	st.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent, safe to call on every start.
func (st *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS monitorings (
		id INTEGER PRIMARY KEY,
		registration_number INTEGER NOT NULL DEFAULT 0,
		performed_date TEXT NOT NULL,
		submitted_date TEXT NOT NULL DEFAULT '',
		paid_date TEXT NOT NULL DEFAULT '',
		patient_id INTEGER NOT NULL,
		doctor_id INTEGER NOT NULL,
		technician_id INTEGER NOT NULL,
		place_id INTEGER NOT NULL DEFAULT 0,
		pathology_id INTEGER NOT NULL DEFAULT 0,
		requester_id INTEGER NOT NULL DEFAULT 0,
		equipment_id INTEGER,
		anesthesia_detail TEXT NOT NULL DEFAULT '',
		had_complication INTEGER NOT NULL DEFAULT 0,
		complication_detail TEXT NOT NULL DEFAULT '',
		motor_change_note TEXT NOT NULL DEFAULT '',
		doctor_snapshot TEXT NOT NULL DEFAULT '',
		technician_snapshot TEXT NOT NULL DEFAULT '',
		requester_snapshot TEXT NOT NULL DEFAULT '',

		-- Change-detection timestamp, epoch millis
		updated_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_monitorings_updated ON monitorings(updated_at);
	CREATE INDEX IF NOT EXISTS idx_monitorings_patient ON monitorings(patient_id);

	-- Reference entities: id -> display label
	CREATE TABLE IF NOT EXISTS patients (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS doctors (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS technicians (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS places (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS pathologies (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS requesters (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS equipments (id INTEGER PRIMARY KEY, name TEXT NOT NULL);

	CREATE TABLE IF NOT EXISTS sync_metadata (
		collection TEXT PRIMARY KEY,
		last_sync_ms INTEGER NOT NULL DEFAULT 0,
		spreadsheet_id TEXT NOT NULL DEFAULT '',
		range_expr TEXT NOT NULL DEFAULT '',
		last_row_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'PENDING'
	);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := st.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// UpsertMonitoring inserts or updates a monitoring record.
//
// If a record with the same id exists it is updated in place, so ids
// are never duplicated. updated_at is set to the current time.
func (st *Store) UpsertMonitoring(ctx context.Context, m *record.Monitoring) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid monitoring: %w", err)
	}

	query := `
	INSERT INTO monitorings (
		id, registration_number, performed_date, submitted_date, paid_date,
		patient_id, doctor_id, technician_id, place_id, pathology_id,
		requester_id, equipment_id, anesthesia_detail, had_complication,
		complication_detail, motor_change_note, doctor_snapshot,
		technician_snapshot, requester_snapshot, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		registration_number = excluded.registration_number,
		performed_date = excluded.performed_date,
		submitted_date = excluded.submitted_date,
		paid_date = excluded.paid_date,
		patient_id = excluded.patient_id,
		doctor_id = excluded.doctor_id,
		technician_id = excluded.technician_id,
		place_id = excluded.place_id,
		pathology_id = excluded.pathology_id,
		requester_id = excluded.requester_id,
		equipment_id = excluded.equipment_id,
		anesthesia_detail = excluded.anesthesia_detail,
		had_complication = excluded.had_complication,
		complication_detail = excluded.complication_detail,
		motor_change_note = excluded.motor_change_note,
		doctor_snapshot = excluded.doctor_snapshot,
		technician_snapshot = excluded.technician_snapshot,
		requester_snapshot = excluded.requester_snapshot,
		updated_at = excluded.updated_at
	`

	_, err := st.conn.ExecContext(ctx, query,
		m.ID,
		m.RegistrationNumber,
		m.PerformedDate,
		m.SubmittedDate,
		m.PaidDate,
		m.PatientID,
		m.DoctorID,
		m.TechnicianID,
		m.PlaceID,
		m.PathologyID,
		m.RequesterID,
		equipmentToNull(m.EquipmentID),
		m.AnesthesiaDetail,
		boolToInt(m.HadComplication),
		m.ComplicationDetail,
		m.MotorChangeNote,
		m.DoctorSnapshot,
		m.TechnicianSnapshot,
		m.RequesterSnapshot,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert monitoring %d: %w", m.ID, err)
	}
	return nil
}

// GetMonitoring retrieves a single record by id.
// Returns sql.ErrNoRows if the record is not found.
func (st *Store) GetMonitoring(ctx context.Context, id int64) (*record.Monitoring, error) {
	row := st.conn.QueryRowContext(ctx, selectMonitoring+" WHERE id = ?", id)
	return scanMonitoring(row)
}

// ListMonitorings returns a point-in-time snapshot of all records,
// ordered by id.
func (st *Store) ListMonitorings(ctx context.Context) ([]*record.Monitoring, error) {
	return st.queryMonitorings(ctx, selectMonitoring+" ORDER BY id ASC")
}

// ListMonitoringsModifiedSince returns records created or modified
// strictly after the given epoch-millis timestamp, ordered by id.
// Returns an empty slice when nothing changed.
func (st *Store) ListMonitoringsModifiedSince(ctx context.Context, sinceMillis int64) ([]*record.Monitoring, error) {
	return st.queryMonitorings(ctx,
		selectMonitoring+" WHERE updated_at > ? ORDER BY id ASC", sinceMillis)
}

// CountMonitorings returns the total number of records.
func (st *Store) CountMonitorings(ctx context.Context) (int, error) {
	var count int
	err := st.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM monitorings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count monitorings: %w", err)
	}
	return count, nil
}

// DeleteMonitoring removes a record. Idempotent.
func (st *Store) DeleteMonitoring(ctx context.Context, id int64) error {
	if _, err := st.conn.ExecContext(ctx, "DELETE FROM monitorings WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete monitoring %d: %w", id, err)
	}
	return nil
}

// NextMonitoringID returns the next free record id (max + 1).
func (st *Store) NextMonitoringID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	err := st.conn.QueryRowContext(ctx, "SELECT MAX(id) FROM monitorings").Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max monitoring id: %w", err)
	}
	return max.Int64 + 1, nil
}

const selectMonitoring = `
	SELECT id, registration_number, performed_date, submitted_date, paid_date,
	       patient_id, doctor_id, technician_id, place_id, pathology_id,
	       requester_id, equipment_id, anesthesia_detail, had_complication,
	       complication_detail, motor_change_note, doctor_snapshot,
	       technician_snapshot, requester_snapshot, updated_at
	FROM monitorings`

func (st *Store) queryMonitorings(ctx context.Context, query string, args ...any) ([]*record.Monitoring, error) {
	rows, err := st.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitorings: %w", err)
	}
	defer rows.Close()

	var records []*record.Monitoring
	for rows.Next() {
		m, err := scanMonitoring(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitorings: %w", err)
	}
	return records, nil
}

// scanner abstracts over *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMonitoring(s scanner) (*record.Monitoring, error) {
	var m record.Monitoring
	var equipment sql.NullInt64
	var hadComplication int
	var updatedMs int64

	err := s.Scan(
		&m.ID,
		&m.RegistrationNumber,
		&m.PerformedDate,
		&m.SubmittedDate,
		&m.PaidDate,
		&m.PatientID,
		&m.DoctorID,
		&m.TechnicianID,
		&m.PlaceID,
		&m.PathologyID,
		&m.RequesterID,
		&equipment,
		&m.AnesthesiaDetail,
		&hadComplication,
		&m.ComplicationDetail,
		&m.MotorChangeNote,
		&m.DoctorSnapshot,
		&m.TechnicianSnapshot,
		&m.RequesterSnapshot,
		&updatedMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan monitoring: %w", err)
	}

	if equipment.Valid {
		v := equipment.Int64
		m.EquipmentID = &v
	}
	m.HadComplication = hadComplication != 0
	m.UpdatedAt = time.UnixMilli(updatedMs)

	return &m, nil
}

func equipmentToNull(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
