package sync

import (
	"sort"

	"github.com/MaximoMartin/mambapp-sync/internal/record"
)

// Merge combines the remote snapshot and the local change set into one
// consistent record set keyed by id.
//
// When an id appears in both inputs the local version wins: local changes
// were detected after the last sync, so they are assumed more recent.
// Whole records are replaced, never field-merged. Records present in only
// one input are kept as-is. The output is sorted by id and carries no
// duplicate ids, which makes Merge deterministic and idempotent.
//
// A record present remotely but deleted locally is not removed here:
// deletions are not propagated by this policy.
func Merge(remote, local []*record.Monitoring) []*record.Monitoring {
	byID := make(map[int64]*record.Monitoring, len(remote)+len(local))

	for _, m := range remote {
		byID[m.ID] = m
	}
	for _, m := range local {
		byID[m.ID] = m
	}

	merged := make([]*record.Monitoring, 0, len(byID))
	for _, m := range byID {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })

	return merged
}
