package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MaximoMartin/mambapp-sync/internal/record"
)

// ReferenceKind names one of the reference-entity collections.
type ReferenceKind string

const (
	RefPatient    ReferenceKind = "patients"
	RefDoctor     ReferenceKind = "doctors"
	RefTechnician ReferenceKind = "technicians"
	RefPlace      ReferenceKind = "places"
	RefPathology  ReferenceKind = "pathologies"
	RefRequester  ReferenceKind = "requesters"
	RefEquipment  ReferenceKind = "equipments"
)

// ReferenceKinds lists all reference collections in a stable order.
var ReferenceKinds = []ReferenceKind{
	RefPatient, RefDoctor, RefTechnician, RefPlace,
	RefPathology, RefRequester, RefEquipment,
}

// Reference is one reference-entity row.
type Reference struct {
	ID   int64
	Name string
}

// validKind guards against table-name injection; ReferenceKind values
// are used directly in SQL.
func validKind(kind ReferenceKind) error {
	for _, k := range ReferenceKinds {
		if k == kind {
			return nil
		}
	}
	return fmt.Errorf("unknown reference kind %q", kind)
}

// PutReference inserts or updates a reference entity.
func (st *Store) PutReference(ctx context.Context, kind ReferenceKind, ref *Reference) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if ref.ID <= 0 {
		return fmt.Errorf("reference id must be positive (got %d)", ref.ID)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, name) VALUES (?, ?)
	ON CONFLICT(id) DO UPDATE SET name = excluded.name`, kind)

	if _, err := st.conn.ExecContext(ctx, query, ref.ID, ref.Name); err != nil {
		return fmt.Errorf("failed to upsert %s %d: %w", kind, ref.ID, err)
	}
	return nil
}

// ReferenceName returns the display label for a reference entity, or the
// empty string when the id is unknown.
func (st *Store) ReferenceName(ctx context.Context, kind ReferenceKind, id int64) (string, error) {
	if err := validKind(kind); err != nil {
		return "", err
	}

	var name string
	query := fmt.Sprintf("SELECT name FROM %s WHERE id = ?", kind)
	err := st.conn.QueryRowContext(ctx, query, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query %s %d: %w", kind, id, err)
	}
	return name, nil
}

// ListReferences returns all entities of a kind, ordered by id.
func (st *Store) ListReferences(ctx context.Context, kind ReferenceKind) ([]*Reference, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, name FROM %s ORDER BY id ASC", kind)
	rows, err := st.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var refs []*Reference
	for rows.Next() {
		var ref Reference
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		refs = append(refs, &ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", kind, err)
	}
	return refs, nil
}

// ResolveSnapshots fills the record's denormalized label fields from the
// current reference tables. Called when a record is saved locally so the
// remote tabular view stays readable independent of local id changes.
// Unknown references resolve to empty labels, never to an error.
func (st *Store) ResolveSnapshots(ctx context.Context, m *record.Monitoring) error {
	doctor, err := st.ReferenceName(ctx, RefDoctor, m.DoctorID)
	if err != nil {
		return err
	}
	technician, err := st.ReferenceName(ctx, RefTechnician, m.TechnicianID)
	if err != nil {
		return err
	}
	requester, err := st.ReferenceName(ctx, RefRequester, m.RequesterID)
	if err != nil {
		return err
	}

	m.DoctorSnapshot = doctor
	m.TechnicianSnapshot = technician
	m.RequesterSnapshot = requester
	return nil
}
