package scheduler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MaximoMartin/mambapp-sync/internal/sheets"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		MinInterval: 10 * time.Millisecond,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
		Logger:      log.New(logWriter{t}, "[test] ", 0),
	}
}

type logWriter struct{ t *testing.T }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestClassify(t *testing.T) {
	transport := sheets.NewFailure(sheets.KindTransport, "timeout", nil)
	auth := sheets.NewFailure(sheets.KindAuth, "forbidden", nil)
	config := sheets.NewFailure(sheets.KindConfig, "unconfigured", nil)

	cases := []struct {
		name    string
		err     error
		attempt int
		want    Outcome
	}{
		{"nil error", nil, 1, OutcomeSuccess},
		{"transport first attempt", transport, 1, OutcomeRetry},
		{"transport below ceiling", transport, 2, OutcomeRetry},
		{"transport at ceiling", transport, 3, OutcomeFailure},
		{"auth is terminal", auth, 1, OutcomeFailure},
		{"config is terminal", config, 1, OutcomeFailure},
		{"unknown error retries", errors.New("boom"), 1, OutcomeRetry},
		{"unknown error at ceiling", errors.New("boom"), 3, OutcomeFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err, tc.attempt, 3); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	base := 30 * time.Second
	cap := 10 * time.Minute

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{6, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tc := range cases {
		if got := Backoff(tc.attempt, base, cap); got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestRunImmediateRetriesTransientFailures(t *testing.T) {
	s := New(testConfig(t), Probes{})
	defer s.Stop()

	var calls atomic.Int32
	job := Job{
		Key: "push",
		Run: func(ctx context.Context) error {
			if calls.Add(1) < 3 {
				return sheets.NewFailure(sheets.KindTransport, "flaky", nil)
			}
			return nil
		},
	}

	s.RunImmediate(job)
	waitForOutcome(t, s, "push", OutcomeSuccess)

	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestRunImmediateAuthFailureIsTerminal(t *testing.T) {
	s := New(testConfig(t), Probes{})
	defer s.Stop()

	var calls atomic.Int32
	job := Job{
		Key: "push",
		Run: func(ctx context.Context) error {
			calls.Add(1)
			return sheets.NewFailure(sheets.KindAuth, "bad credentials", nil)
		},
	}

	s.RunImmediate(job)
	waitForOutcome(t, s, "push", OutcomeFailure)

	if got := calls.Load(); got != 1 {
		t.Errorf("expected no retry after auth failure, got %d attempts", got)
	}
}

func TestConstraintsSkipRun(t *testing.T) {
	network := atomic.Bool{}
	probes := Probes{NetworkAvailable: network.Load}

	s := New(testConfig(t), probes)
	defer s.Stop()

	var calls atomic.Int32
	job := Job{
		Key:         "push",
		Constraints: Constraints{RequireNetwork: true},
		Run: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	}

	s.RunImmediate(job)
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("expected run skipped without network, got %d calls", calls.Load())
	}
	if _, ran := s.LastOutcome("push"); ran {
		t.Error("expected no recorded outcome for a skipped run")
	}

	network.Store(true)
	s.RunImmediate(job)
	waitForOutcome(t, s, "push", OutcomeSuccess)
}

func TestPeriodicKeepPolicy(t *testing.T) {
	s := New(testConfig(t), Probes{})
	defer s.Stop()

	job := Job{Key: "periodic", Run: func(ctx context.Context) error { return nil }}

	s.SchedulePeriodic(job, 10*time.Millisecond)
	s.SchedulePeriodic(job, 10*time.Millisecond)

	s.mu.Lock()
	entries := len(s.periodic)
	s.mu.Unlock()
	if entries != 1 {
		t.Errorf("expected 1 periodic entry after duplicate enqueue, got %d", entries)
	}
}

func TestPeriodicRunsAndCancel(t *testing.T) {
	s := New(testConfig(t), Probes{})
	defer s.Stop()

	var calls atomic.Int32
	job := Job{Key: "periodic", Run: func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}}

	s.SchedulePeriodic(job, 10*time.Millisecond)
	s.Start()

	deadline := time.After(2 * time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("periodic job never ran")
		case <-time.After(time.Millisecond):
		}
	}

	s.CancelPeriodic("periodic")
	s.mu.Lock()
	entries := len(s.periodic)
	s.mu.Unlock()
	if entries != 0 {
		t.Errorf("expected no periodic entries after cancel, got %d", entries)
	}
}

func TestImmediateReplacePolicy(t *testing.T) {
	s := New(testConfig(t), Probes{})

	block := make(chan struct{})
	var running atomic.Int32
	var replaced atomic.Int32

	// First job occupies the unique-work slot.
	s.RunImmediate(Job{Key: "push", Run: func(ctx context.Context) error {
		running.Add(1)
		<-block
		return nil
	}})

	deadline := time.After(2 * time.Second)
	for running.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first immediate job never started")
		case <-time.After(time.Millisecond):
		}
	}

	// While it runs, two more requests arrive: the first pending one is
	// replaced by the second.
	slow := Job{Key: "push", Run: func(ctx context.Context) error {
		replaced.Add(1)
		return nil
	}}
	s.RunImmediate(slow)
	s.RunImmediate(slow)

	close(block)
	s.Stop()

	// At most one of the two pending requests survived the replace.
	if got := replaced.Load(); got > 1 {
		t.Errorf("expected at most 1 replacement run, got %d", got)
	}
}

func waitForOutcome(t *testing.T, s *Scheduler, key string, want Outcome) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if got, ok := s.LastOutcome(key); ok {
			if got != want {
				t.Fatalf("expected outcome %s, got %s", want, got)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never finished", key)
		case <-time.After(time.Millisecond):
		}
	}
}
