package sync

import "time"

// StatusKind enumerates the orchestrator states.
type StatusKind int

const (
	// StatusIdle means no sync pass has run yet, or the last one finished
	// and the orchestrator is ready for the next trigger.
	StatusIdle StatusKind = iota
	// StatusInProgress means a sync pass is executing.
	StatusInProgress
	// StatusSuccess means the last pass completed without failure.
	StatusSuccess
	// StatusError means the last pass failed; Message carries the cause.
	StatusError
)

// String returns a human-readable representation of the kind.
func (k StatusKind) String() string {
	switch k {
	case StatusIdle:
		return "idle"
	case StatusInProgress:
		return "in progress"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the transient, in-memory sync state. It is mutated only on
// the orchestrator's execution path and observed read-only by the UI and
// the background scheduler. Success and Error are not terminal: the
// orchestrator accepts the next trigger from either.
type Status struct {
	Kind    StatusKind
	Message string // set only when Kind == StatusError
	At      time.Time
}
