// Package scheduler adapts the sync orchestrator to background
// execution: periodic and immediate jobs with execution constraints,
// exponential retry backoff, and idempotent unique-work keys.
package scheduler

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PassFunc executes one sync pass.
type PassFunc func(ctx context.Context) error

// Constraints declares the conditions a job needs to run. An unmet
// constraint skips the run; periodic jobs simply try again at the next
// cadence.
type Constraints struct {
	RequireNetwork   bool
	RequireBatteryOK bool
}

// Probes supplies the environment checks backing Constraints. Nil probes
// report the constraint as satisfied.
type Probes struct {
	NetworkAvailable func() bool
	BatteryOK        func() bool
}

func (p Probes) satisfied(c Constraints) bool {
	if c.RequireNetwork && p.NetworkAvailable != nil && !p.NetworkAvailable() {
		return false
	}
	if c.RequireBatteryOK && p.BatteryOK != nil && !p.BatteryOK() {
		return false
	}
	return true
}

// Job is a named unit of background work. Key identifies the unique
// work slot: two jobs with the same key never run concurrently.
type Job struct {
	Key         string
	Run         PassFunc
	Constraints Constraints
}

// Config holds scheduler tuning knobs.
type Config struct {
	// MinInterval is the floor for periodic cadence; shorter requested
	// intervals are clamped up to it.
	MinInterval time.Duration

	// MaxAttempts is the retry ceiling per run (including the first
	// attempt).
	MaxAttempts int

	// BackoffBase and BackoffCap bound the exponential retry delay.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Logger for scheduler activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MinInterval: time.Minute,
		MaxAttempts: 3,
		BackoffBase: 30 * time.Second,
		BackoffCap:  10 * time.Minute,
		Logger:      log.New(os.Stderr, "[scheduler] ", log.LstdFlags),
	}
}

// Scheduler runs sync jobs in the background.
type Scheduler struct {
	config *Config
	probes Probes
	cron   *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	periodic map[string]cron.EntryID
	inflight map[string]bool
	pending  map[string]chan struct{} // pending immediate runs, by key
	outcomes map[string]Outcome
}

// New creates a Scheduler. If config is nil, defaults are used.
func New(config *Config, probes Probes) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[scheduler] ", log.LstdFlags)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		config:   config,
		probes:   probes,
		cron:     cron.New(),
		ctx:      ctx,
		cancel:   cancel,
		periodic: make(map[string]cron.EntryID),
		inflight: make(map[string]bool),
		pending:  make(map[string]chan struct{}),
		outcomes: make(map[string]Outcome),
	}
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.config.Logger.Printf("Scheduler started")
}

// Stop cancels running jobs and waits for them to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.config.Logger.Printf("Scheduler stopped")
}

// SchedulePeriodic enqueues a periodic job at the given cadence.
//
// The key is idempotent with a KEEP policy: if a periodic job with the
// same key is already enqueued, the existing entry is kept and the new
// request is ignored. Intervals below the configured floor are clamped.
func (s *Scheduler) SchedulePeriodic(job Job, every time.Duration) {
	if every < s.config.MinInterval {
		every = s.config.MinInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.periodic[job.Key]; exists {
		s.config.Logger.Printf("Periodic job %s already enqueued, keeping existing", job.Key)
		return
	}

	id := s.cron.Schedule(cron.Every(every), cron.FuncJob(func() {
		s.wg.Add(1)
		defer s.wg.Done()
		s.execute(job)
	}))
	s.periodic[job.Key] = id
	s.config.Logger.Printf("Periodic job %s enqueued, every %v", job.Key, every)
}

// CancelPeriodic removes a periodic job. Idempotent.
func (s *Scheduler) CancelPeriodic(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.periodic[key]; ok {
		s.cron.Remove(id)
		delete(s.periodic, key)
		s.config.Logger.Printf("Periodic job %s cancelled", key)
	}
}

// RunImmediate enqueues a one-shot run of the job.
//
// The key follows a REPLACE policy for pending work: an immediate request
// that has not started yet is dropped in favor of the new one. A run that
// is already executing is never interrupted; a request that would overlap
// it is dropped by the unique-work guard.
func (s *Scheduler) RunImmediate(job Job) {
	s.mu.Lock()
	if prev, ok := s.pending[job.Key]; ok {
		close(prev)
		s.config.Logger.Printf("Replacing pending immediate job %s", job.Key)
	}
	cancelled := make(chan struct{})
	s.pending[job.Key] = cancelled
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-cancelled:
			return
		case <-s.ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		if s.pending[job.Key] == cancelled {
			delete(s.pending, job.Key)
		}
		s.mu.Unlock()

		s.execute(job)
	}()
}

// LastOutcome returns the most recent outcome for a job key.
// The second result is false when the job never ran.
func (s *Scheduler) LastOutcome(key string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[key]
	return o, ok
}

// execute runs one job occurrence through the attempt/backoff loop and
// records its outcome. Overlapping occurrences of the same key are
// dropped, which keeps scheduled triggers idempotent.
func (s *Scheduler) execute(job Job) {
	s.mu.Lock()
	if s.inflight[job.Key] {
		s.mu.Unlock()
		s.config.Logger.Printf("Job %s still running, skipping overlapping trigger", job.Key)
		return
	}
	s.inflight[job.Key] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, job.Key)
		s.mu.Unlock()
	}()

	if !s.probes.satisfied(job.Constraints) {
		s.config.Logger.Printf("Job %s skipped: constraints not met", job.Key)
		return
	}

	outcome := s.runWithRetry(job)

	s.mu.Lock()
	s.outcomes[job.Key] = outcome
	s.mu.Unlock()

	s.config.Logger.Printf("Job %s finished: %s", job.Key, outcome)
}

func (s *Scheduler) runWithRetry(job Job) Outcome {
	for attempt := 1; ; attempt++ {
		err := job.Run(s.ctx)

		outcome := Classify(err, attempt, s.config.MaxAttempts)
		if outcome != OutcomeRetry {
			if err != nil {
				s.config.Logger.Printf("Job %s attempt %d: %v (%s)", job.Key, attempt, err, outcome)
			}
			return outcome
		}

		delay := Backoff(attempt, s.config.BackoffBase, s.config.BackoffCap)
		s.config.Logger.Printf("Job %s attempt %d failed: %v, retrying in %v", job.Key, attempt, err, delay)

		select {
		case <-s.ctx.Done():
			return OutcomeFailure
		case <-time.After(delay):
		}
	}
}
