package record

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// MinColumns is the minimum cell count a remote row must have to be
// accepted by DecodeRow. Rows shorter than this are skipped.
const MinColumns = 19

// Positional column layout of the remote sheet. Columns beyond the last
// declared index are reserved and read with an index-exists check.
const (
	colID = iota
	colRegistrationNumber
	colPerformedDate
	colSubmittedDate
	colPaidDate
	colPatientID
	colDoctorID
	colTechnicianID
	colPlaceID
	colPathologyID
	colRequesterID
	colEquipmentID
	colAnesthesiaDetail
	colHadComplication
	colComplicationDetail
	colMotorChangeNote
	colDoctorSnapshot
	colTechnicianSnapshot
	colRequesterSnapshot
)

// ErrShortRow marks a remote row with fewer than MinColumns cells.
var ErrShortRow = errors.New("row has too few columns")

// EncodeRow projects a record into a fixed-width row of cell values.
//
// Encoding is total: absent optional fields project to the empty string,
// booleans to their literal textual form, references to decimal text.
func EncodeRow(m *Monitoring) []any {
	equipment := ""
	if m.EquipmentID != nil {
		equipment = strconv.FormatInt(*m.EquipmentID, 10)
	}

	return []any{
		strconv.FormatInt(m.ID, 10),
		strconv.FormatInt(m.RegistrationNumber, 10),
		m.PerformedDate,
		m.SubmittedDate,
		m.PaidDate,
		strconv.FormatInt(m.PatientID, 10),
		strconv.FormatInt(m.DoctorID, 10),
		strconv.FormatInt(m.TechnicianID, 10),
		strconv.FormatInt(m.PlaceID, 10),
		strconv.FormatInt(m.PathologyID, 10),
		strconv.FormatInt(m.RequesterID, 10),
		equipment,
		m.AnesthesiaDetail,
		strconv.FormatBool(m.HadComplication),
		m.ComplicationDetail,
		m.MotorChangeNote,
		m.DoctorSnapshot,
		m.TechnicianSnapshot,
		m.RequesterSnapshot,
	}
}

// EncodeRows encodes a batch of records in order.
func EncodeRows(records []*Monitoring) [][]any {
	rows := make([][]any, 0, len(records))
	for _, m := range records {
		rows = append(rows, EncodeRow(m))
	}
	return rows
}

// DecodeRow parses one remote row into a record.
//
// Remote data is untrusted (the sheet is hand-editable), so decoding is
// defensive: numeric cells fall back to zero instead of failing the row,
// date cells are taken as literal strings with blank meaning absent, and
// cells past the end of a short-but-acceptable row read as empty text.
// Rows with fewer than MinColumns cells are rejected with ErrShortRow.
func DecodeRow(row []any) (*Monitoring, error) {
	if len(row) < MinColumns {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrShortRow, len(row), MinColumns)
	}

	m := &Monitoring{
		ID:                 cellInt(row, colID),
		RegistrationNumber: cellInt(row, colRegistrationNumber),
		PerformedDate:      cellText(row, colPerformedDate),
		SubmittedDate:      cellText(row, colSubmittedDate),
		PaidDate:           cellText(row, colPaidDate),
		PatientID:          cellInt(row, colPatientID),
		DoctorID:           cellInt(row, colDoctorID),
		TechnicianID:       cellInt(row, colTechnicianID),
		PlaceID:            cellInt(row, colPlaceID),
		PathologyID:        cellInt(row, colPathologyID),
		RequesterID:        cellInt(row, colRequesterID),
		AnesthesiaDetail:   cellText(row, colAnesthesiaDetail),
		HadComplication:    cellBool(row, colHadComplication),
		ComplicationDetail: cellText(row, colComplicationDetail),
		MotorChangeNote:    cellText(row, colMotorChangeNote),
		DoctorSnapshot:     cellText(row, colDoctorSnapshot),
		TechnicianSnapshot: cellText(row, colTechnicianSnapshot),
		RequesterSnapshot:  cellText(row, colRequesterSnapshot),
	}

	// Blank equipment means "no equipment", not equipment zero.
	if s := cellTrimmed(row, colEquipmentID); s != "" {
		id := parseIntDefault(s)
		m.EquipmentID = &id
	}

	return m, nil
}

// DecodeRows decodes a batch of remote rows, skipping malformed ones.
//
// A malformed row is logged and dropped; it never aborts the batch.
func DecodeRows(rows [][]any, logger *log.Logger) []*Monitoring {
	records := make([]*Monitoring, 0, len(rows))
	for i, row := range rows {
		m, err := DecodeRow(row)
		if err != nil {
			if logger != nil {
				logger.Printf("WARNING: skipping row %d: %v", i, err)
			}
			continue
		}
		records = append(records, m)
	}
	return records
}

// cellText reads a cell as literal text, defaulting to empty for cells
// past the end of the row. Text cells are never trimmed, so a record
// whose fields carry surrounding whitespace survives a round trip.
func cellText(row []any, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}

// cellTrimmed is cellText with surrounding whitespace removed. Used for
// the parsed cells, where stray spaces from hand-edited sheets would
// otherwise fail the parse.
func cellTrimmed(row []any, idx int) string {
	return strings.TrimSpace(cellText(row, idx))
}

func cellInt(row []any, idx int) int64 {
	return parseIntDefault(cellTrimmed(row, idx))
}

func cellBool(row []any, idx int) bool {
	v, err := strconv.ParseBool(cellTrimmed(row, idx))
	if err != nil {
		return false
	}
	return v
}

// parseIntDefault parses decimal text, tolerating the float rendering the
// spreadsheet service sometimes applies to numeric cells. Unparseable text
// yields zero.
func parseIntDefault(s string) int64 {
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}
