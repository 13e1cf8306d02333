package sync

import (
	"testing"

	"github.com/MaximoMartin/mambapp-sync/internal/record"
)

func mkRecord(id int64, detail string) *record.Monitoring {
	return &record.Monitoring{
		ID:               id,
		PerformedDate:    "2024-03-11",
		PatientID:        1,
		DoctorID:         1,
		TechnicianID:     1,
		AnesthesiaDetail: detail,
	}
}

func TestMergeLocalWinsOnCollision(t *testing.T) {
	remote := []*record.Monitoring{mkRecord(1, "remote")}
	local := []*record.Monitoring{mkRecord(1, "local")}

	merged := Merge(remote, local)
	if len(merged) != 1 {
		t.Fatalf("expected 1 record, got %d", len(merged))
	}
	if merged[0].AnesthesiaDetail != "local" {
		t.Errorf("expected local version to win, got %q", merged[0].AnesthesiaDetail)
	}
}

func TestMergeKeepsDisjointRecords(t *testing.T) {
	remote := []*record.Monitoring{mkRecord(1, "r1"), mkRecord(3, "r3")}
	local := []*record.Monitoring{mkRecord(2, "l2")}

	merged := Merge(remote, local)
	if len(merged) != 3 {
		t.Fatalf("expected 3 records, got %d", len(merged))
	}
	for i, wantID := range []int64{1, 2, 3} {
		if merged[i].ID != wantID {
			t.Errorf("position %d: expected id %d, got %d", i, wantID, merged[i].ID)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	remote := []*record.Monitoring{mkRecord(1, "r1"), mkRecord(2, "r2")}
	local := []*record.Monitoring{mkRecord(2, "l2"), mkRecord(4, "l4")}

	once := Merge(remote, local)
	twice := Merge(once, local)

	if len(once) != len(twice) {
		t.Fatalf("expected stable size, got %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if !once[i].Equal(twice[i]) {
			t.Errorf("position %d differs after re-merge: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestMergeNoDuplicateIDs(t *testing.T) {
	remote := []*record.Monitoring{mkRecord(1, "a"), mkRecord(1, "b")}
	local := []*record.Monitoring{mkRecord(1, "c")}

	merged := Merge(remote, local)
	if len(merged) != 1 {
		t.Fatalf("expected 1 record, got %d", len(merged))
	}
	if merged[0].AnesthesiaDetail != "c" {
		t.Errorf("expected last-writer local record, got %q", merged[0].AnesthesiaDetail)
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	if got := Merge(nil, nil); len(got) != 0 {
		t.Errorf("expected empty merge, got %d records", len(got))
	}

	local := []*record.Monitoring{mkRecord(1, "l")}
	if got := Merge(nil, local); len(got) != 1 {
		t.Errorf("expected 1 record, got %d", len(got))
	}
}
