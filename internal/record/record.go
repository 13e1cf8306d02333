// Package record provides the Monitoring record type and the positional
// row codec used to move records across the spreadsheet boundary.
package record

import (
	"fmt"
	"time"
)

// Monitoring represents one monitored clinical procedure.
//
// Date fields hold ISO-8601 calendar dates as literal strings; the empty
// string means "absent". EquipmentID is the only optional reference
// (nil when no equipment was involved).
//
// The snapshot fields carry denormalized labels of the referenced doctor,
// technician and requester, captured at write time so the spreadsheet view
// stays readable independent of local id changes.
type Monitoring struct {
	ID                 int64  `json:"id"`
	RegistrationNumber int64  `json:"registration_number"`
	PerformedDate      string `json:"performed_date"`
	SubmittedDate      string `json:"submitted_date,omitempty"`
	PaidDate           string `json:"paid_date,omitempty"`

	PatientID    int64  `json:"patient_id"`
	DoctorID     int64  `json:"doctor_id"`
	TechnicianID int64  `json:"technician_id"`
	PlaceID      int64  `json:"place_id"`
	PathologyID  int64  `json:"pathology_id"`
	RequesterID  int64  `json:"requester_id"`
	EquipmentID  *int64 `json:"equipment_id,omitempty"`

	AnesthesiaDetail   string `json:"anesthesia_detail,omitempty"`
	HadComplication    bool   `json:"had_complication"`
	ComplicationDetail string `json:"complication_detail,omitempty"`
	MotorChangeNote    string `json:"motor_change_note,omitempty"`

	DoctorSnapshot     string `json:"doctor_snapshot,omitempty"`
	TechnicianSnapshot string `json:"technician_snapshot,omitempty"`
	RequesterSnapshot  string `json:"requester_snapshot,omitempty"`

	// UpdatedAt is maintained by the local store on every write and drives
	// incremental change detection. It is never encoded to the remote row.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks if the Monitoring has valid field values.
func (m *Monitoring) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("id must be positive (got %d)", m.ID)
	}
	if m.PerformedDate == "" {
		return fmt.Errorf("performed_date is required")
	}
	if m.PatientID <= 0 {
		return fmt.Errorf("patient_id is required")
	}
	if m.DoctorID <= 0 {
		return fmt.Errorf("doctor_id is required")
	}
	if m.TechnicianID <= 0 {
		return fmt.Errorf("technician_id is required")
	}
	if m.HadComplication && m.ComplicationDetail == "" {
		return fmt.Errorf("complication_detail is required when had_complication is set")
	}
	return nil
}

// Equal reports whether two records carry the same field values,
// ignoring the local UpdatedAt bookkeeping.
func (m *Monitoring) Equal(other *Monitoring) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.ID != other.ID ||
		m.RegistrationNumber != other.RegistrationNumber ||
		m.PerformedDate != other.PerformedDate ||
		m.SubmittedDate != other.SubmittedDate ||
		m.PaidDate != other.PaidDate ||
		m.PatientID != other.PatientID ||
		m.DoctorID != other.DoctorID ||
		m.TechnicianID != other.TechnicianID ||
		m.PlaceID != other.PlaceID ||
		m.PathologyID != other.PathologyID ||
		m.RequesterID != other.RequesterID ||
		m.AnesthesiaDetail != other.AnesthesiaDetail ||
		m.HadComplication != other.HadComplication ||
		m.ComplicationDetail != other.ComplicationDetail ||
		m.MotorChangeNote != other.MotorChangeNote ||
		m.DoctorSnapshot != other.DoctorSnapshot ||
		m.TechnicianSnapshot != other.TechnicianSnapshot ||
		m.RequesterSnapshot != other.RequesterSnapshot {
		return false
	}
	if (m.EquipmentID == nil) != (other.EquipmentID == nil) {
		return false
	}
	if m.EquipmentID != nil && *m.EquipmentID != *other.EquipmentID {
		return false
	}
	return true
}
