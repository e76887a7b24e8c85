package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lattice-run/lattice/internal/cron/expr"
	"github.com/lattice-run/lattice/internal/cron/lock"
	"github.com/lattice-run/lattice/internal/cron/stream"
)

// Invoker performs the actual job invocation: calling the target
// component/provider with the job's payload. The lattice core only
// coordinates *when* exactly one replica fires; what "invoke" means is a
// host-local/capability-provider concern out of scope (spec.md §1), so
// Invoker is the seam between the two.
type Invoker func(ctx context.Context, job Job) error

// dynamicTTLBuffer is the "small (~5%) buffer" spec.md §4.6 adds to a
// DynamicInterval job's per-message sentinel TTL.
const dynamicTTLBuffer = 1.05

// DefaultLockTTL is the lock bucket's configured max-age (≈1s, spec.md
// §4.6), used as the TTL for every lock acquisition attempt.
const DefaultLockTTL = 1 * time.Second

// jobState tracks one registered job's runtime state.
type jobState struct {
	job      Job
	sched    *expr.Schedule
	kind     expr.Kind
	interval time.Duration
	state    State
	cancel   func()
}

// Scheduler coordinates distributed-cron jobs across however many
// provider replicas call Register for the same job: the stream + lock
// primitives ensure only one replica's Invoker call wins each firing.
type Scheduler struct {
	str     stream.Stream
	locker  lock.Locker
	invoke  Invoker
	log     *zap.SugaredLogger
	lockTTL time.Duration
	now     func() time.Time

	mu   sync.Mutex
	jobs map[string]*jobState
}

// NewScheduler builds a Scheduler. Its clock is time.Now; tests in this
// package may replace the now field for deterministic classification.
func NewScheduler(str stream.Stream, locker lock.Locker, invoke Invoker, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		str:     str,
		locker:  locker,
		invoke:  invoke,
		log:     log,
		lockTTL: DefaultLockTTL,
		now:     time.Now,
		jobs:    make(map[string]*jobState),
	}
}

// Register parses and classifies job's cron expression, creates its
// stream, and starts the consumer loop driving its fire cycle
// (spec.md §4.6 state machine: Registered -> StreamCreated ->
// ConsumerActive -> Firing -> ConsumerActive -> ...).
func (s *Scheduler) Register(ctx context.Context, job Job) error {
	sched, err := expr.Parse(job.CronExpr)
	if err != nil {
		return fmt.Errorf("cron: register %s: %w", job.Key(), err)
	}
	now := s.now()
	kind, interval := expr.Classify(sched, now)

	s.mu.Lock()
	if existing, exists := s.jobs[job.Key()]; exists && existing.state != StateDeleted {
		s.mu.Unlock()
		return fmt.Errorf("cron: job %s already registered", job.Key())
	}
	js := &jobState{job: job, sched: sched, kind: kind, interval: interval, state: StateRegistered}
	s.jobs[job.Key()] = js
	s.mu.Unlock()

	ttl := s.nextTTL(js, now)
	if err := s.str.Publish(ctx, job.StreamKey(), ttl); err != nil {
		return fmt.Errorf("cron: publish sentinel for %s: %w", job.Key(), err)
	}
	s.setState(job.Key(), StateStreamCreated)

	consumerCtx, cancel := context.WithCancel(ctx)
	markers, unsubscribe, err := s.str.Subscribe(consumerCtx, job.StreamKey())
	if err != nil {
		cancel()
		return fmt.Errorf("cron: subscribe %s: %w", job.Key(), err)
	}
	js.cancel = func() { cancel(); unsubscribe() }
	s.setState(job.Key(), StateConsumerActive)

	go s.consume(consumerCtx, js, markers)
	return nil
}

// Deregister stops a job's consumer loop and marks it Deleted. Deleted is
// terminal: State keeps reporting it, and Register may add the same key
// again. The consumer is cancelled; the job's sentinel key is not removed
// from the stream and lapses at its TTL.
func (s *Scheduler) Deregister(key string) {
	s.mu.Lock()
	js, ok := s.jobs[key]
	if ok {
		js.state = StateDeleted
	}
	s.mu.Unlock()
	if ok && js.cancel != nil {
		js.cancel()
	}
}

// State reports a registered job's current state-machine position.
func (s *Scheduler) State(key string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	js, ok := s.jobs[key]
	if !ok {
		return "", false
	}
	return js.state, true
}

func (s *Scheduler) setState(key string, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(key, st)
}

func (s *Scheduler) setStateLocked(key string, st State) {
	if js, ok := s.jobs[key]; ok && js.state != StateDeleted {
		js.state = st
	}
}

// consume runs the fire cycle (spec.md §4.6 steps 1-4) each time a delete
// marker arrives, until ctx is cancelled.
func (s *Scheduler) consume(ctx context.Context, js *jobState, markers <-chan stream.DeleteMarker) {
	for {
		select {
		case _, ok := <-markers:
			if !ok {
				return
			}
			s.fire(ctx, js)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, js *jobState) {
	s.setState(js.job.Key(), StateFiring)
	defer s.setState(js.job.Key(), StateConsumerActive)

	key := lock.Key(js.job.TargetID, js.job.JobName)
	acquired, err := s.locker.TryAcquire(ctx, key, s.lockTTL)
	if err != nil {
		s.logw("cron: lock acquire error", js.job, err)
	} else if acquired {
		payload := js.job.Payload
		if len(payload) == 0 {
			payload = []byte(`{}`)
		}
		invokeJob := js.job
		invokeJob.Payload = payload
		if err := s.invoke(ctx, invokeJob); err != nil {
			// Logged, not retried at this layer: the next firing will
			// re-attempt (spec.md §4.6 step 2).
			s.logw("cron: job invocation failed", js.job, err)
		}
	}
	// Unacked-message redelivery is emulated by the stream's absent-key
	// detection on Subscribe/restart; this layer's equivalent of "ack" is
	// simply moving on to republish the sentinel regardless of which
	// replica won (spec.md §4.6 step 3).

	now := s.now()
	ttl := s.nextTTL(js, now)
	if err := s.str.Publish(ctx, js.job.StreamKey(), ttl); err != nil {
		s.logw("cron: republish sentinel failed", js.job, err)
	}
}

// nextTTL computes the sentinel TTL for a job's next firing, per
// spec.md §4.6: a constant period for FixedInterval jobs, or a freshly
// computed seconds-until-next-firing (with a 5% buffer) for
// DynamicInterval jobs.
func (s *Scheduler) nextTTL(js *jobState, now time.Time) time.Duration {
	if js.kind == expr.FixedInterval {
		return js.interval
	}
	until := js.sched.Next(now).Sub(now)
	if until <= 0 {
		until = time.Second
	}
	return time.Duration(float64(until) * dynamicTTLBuffer)
}

func (s *Scheduler) logw(msg string, job Job, err error) {
	if s.log == nil {
		return
	}
	s.log.Errorw(msg, "target_id", job.TargetID, "job_name", job.JobName, "error", err)
}
