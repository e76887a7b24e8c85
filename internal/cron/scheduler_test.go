package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-run/lattice/internal/cron/stream"
)

// fakeStream is an in-memory stream.Stream for deterministic scheduler
// tests: Publish records the TTL, and a test can push a DeleteMarker
// directly to drive a fire cycle without waiting on real expiry.
type fakeStream struct {
	mu        sync.Mutex
	published map[string]time.Duration
	markers   map[string]chan stream.DeleteMarker
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		published: make(map[string]time.Duration),
		markers:   make(map[string]chan stream.DeleteMarker),
	}
}

func (f *fakeStream) Publish(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[key] = ttl
	return nil
}

func (f *fakeStream) Subscribe(_ context.Context, key string) (<-chan stream.DeleteMarker, func(), error) {
	f.mu.Lock()
	ch := make(chan stream.DeleteMarker, 4)
	f.markers[key] = ch
	f.mu.Unlock()
	return ch, func() {}, nil
}

func (f *fakeStream) fire(key string) {
	f.mu.Lock()
	ch := f.markers[key]
	f.mu.Unlock()
	ch <- stream.DeleteMarker{Key: key}
}

func (f *fakeStream) ttlOf(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[key]
}

// fakeLocker always grants the lock to the first caller per key, per
// attempt-window; AlwaysDeny=true simulates another replica already
// holding it.
type fakeLocker struct {
	mu         sync.Mutex
	grantOnce  map[string]bool
	AlwaysDeny bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{grantOnce: make(map[string]bool)} }

func (f *fakeLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.AlwaysDeny {
		return false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantOnce[key] {
		return false, nil
	}
	f.grantOnce[key] = true
	return true, nil
}

func TestSchedulerFiresOnceWhenLockAcquired(t *testing.T) {
	fs := newFakeStream()
	fl := newFakeLocker()
	var invoked int32
	var mu sync.Mutex
	invoker := func(_ context.Context, job Job) error {
		mu.Lock()
		invoked++
		mu.Unlock()
		return nil
	}
	s := NewScheduler(fs, fl, invoker, nil)
	ctx := context.Background()

	job := Job{TargetID: "t1", LinkName: "default", JobName: "hourly", CronExpr: "* * * * *"}
	require.NoError(t, s.Register(ctx, job))

	fs.fire(job.StreamKey())
	// give the consumer goroutine a moment to process.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return invoked == 1
	}, time.Second, 5*time.Millisecond)

	state, ok := s.State(job.Key())
	require.True(t, ok)
	assert.Equal(t, StateConsumerActive, state)
	assert.Greater(t, fs.ttlOf(job.StreamKey()), time.Duration(0))
}

func TestSchedulerSkipsInvocationWhenLockNotAcquired(t *testing.T) {
	fs := newFakeStream()
	fl := newFakeLocker()
	fl.AlwaysDeny = true
	var mu sync.Mutex
	invoked := 0
	invoker := func(_ context.Context, job Job) error {
		mu.Lock()
		invoked++
		mu.Unlock()
		return nil
	}
	s := NewScheduler(fs, fl, invoker, nil)
	ctx := context.Background()

	job := Job{TargetID: "t1", LinkName: "default", JobName: "hourly", CronExpr: "* * * * *"}
	require.NoError(t, s.Register(ctx, job))

	fs.fire(job.StreamKey())
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, invoked)
}

func TestRegisterRejectsDuplicateJob(t *testing.T) {
	fs := newFakeStream()
	fl := newFakeLocker()
	s := NewScheduler(fs, fl, func(context.Context, Job) error { return nil }, nil)
	ctx := context.Background()
	job := Job{TargetID: "t1", LinkName: "default", JobName: "hourly", CronExpr: "* * * * *"}
	require.NoError(t, s.Register(ctx, job))
	require.Error(t, s.Register(ctx, job))
}

func TestDeregisterMarksDeleted(t *testing.T) {
	fs := newFakeStream()
	fl := newFakeLocker()
	s := NewScheduler(fs, fl, func(context.Context, Job) error { return nil }, nil)
	ctx := context.Background()
	job := Job{TargetID: "t1", LinkName: "default", JobName: "hourly", CronExpr: "* * * * *"}
	require.NoError(t, s.Register(ctx, job))

	s.Deregister(job.Key())
	state, ok := s.State(job.Key())
	require.True(t, ok)
	assert.Equal(t, StateDeleted, state)
}
