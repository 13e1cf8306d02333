package scheduler

import (
	"time"

	"github.com/MaximoMartin/mambapp-sync/internal/sheets"
)

// Outcome is the scheduler-level result of a sync attempt.
type Outcome int

const (
	// OutcomeSuccess means the pass succeeded.
	OutcomeSuccess Outcome = iota
	// OutcomeRetry means the failure looks transient and the attempt
	// should be retried with backoff.
	OutcomeRetry
	// OutcomeFailure means the failure is terminal for this run: the
	// credentials are bad, the sync is unconfigured, or the retry
	// ceiling was exceeded.
	OutcomeFailure
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Classify maps a sync pass result to a scheduler outcome using the
// structured failure kind carried by the error, never message text.
//
// Auth and configuration failures are terminal: retrying cannot fix bad
// credentials or a missing setup. Everything else is considered
// transient until the attempt ceiling is reached.
func Classify(err error, attempt, maxAttempts int) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	switch sheets.KindOf(err) {
	case sheets.KindAuth, sheets.KindConfig:
		return OutcomeFailure
	}
	if attempt >= maxAttempts {
		return OutcomeFailure
	}
	return OutcomeRetry
}

// Backoff returns the exponential delay before retry attempt n (1-based):
// base, 2*base, 4*base... capped at cap.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
