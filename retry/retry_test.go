package retry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/throttle/metrics"
)

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		threads    int
		maxRetries int
		baseDelay  time.Duration
		opts       []Option
	}{
		{name: "zero threads", threads: 0, maxRetries: 1, baseDelay: time.Millisecond},
		{name: "negative threads", threads: -1, maxRetries: 1, baseDelay: time.Millisecond},
		{name: "negative max retries", threads: 1, maxRetries: -1, baseDelay: time.Millisecond},
		{name: "zero base delay", threads: 1, maxRetries: 1, baseDelay: 0},
		{name: "negative base delay", threads: 1, maxRetries: 1, baseDelay: -time.Second},
		{name: "nil logger", threads: 1, maxRetries: 1, baseDelay: time.Millisecond, opts: []Option{WithLogger(nil)}},
		{name: "nil metrics", threads: 1, maxRetries: 1, baseDelay: time.Millisecond, opts: []Option{WithMetrics(nil)}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := New(context.Background(), tt.threads, tt.maxRetries, tt.baseDelay, tt.opts...)
			require.Nil(t, s)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestSubmit_AlwaysFailingTaskExhaustsAfterAllAttempts(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), 1, 3, time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	taskErr := errors.New("downstream unavailable")
	var attempts atomic.Int64
	require.NoError(t, s.Submit(func(context.Context) error {
		attempts.Add(1)
		return taskErr
	}))

	select {
	case got := <-s.GetErrors():
		require.ErrorIs(t, got, ErrRetriesExhausted)
		require.ErrorIs(t, got, taskErr)
	case <-time.After(5 * time.Second):
		t.Fatal("no exhaustion error reported")
	}

	// Initial attempt + 3 retries, never a 5th.
	require.EqualValues(t, 4, attempts.Load())
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 4, attempts.Load())
}

func TestSubmit_SucceedsOnSecondAttempt(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), 1, 3, time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	var attempts atomic.Int64
	require.NoError(t, s.Submit(func(context.Context) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}))

	require.Eventually(t, func() bool { return attempts.Load() == 2 },
		5*time.Second, time.Millisecond)

	// Terminal success: no third attempt, nothing on the errors channel.
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 2, attempts.Load())
	select {
	case got := <-s.GetErrors():
		t.Fatalf("unexpected error reported: %v", got)
	default:
	}
}

func TestSubmit_ZeroMaxRetriesMeansSingleAttempt(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), 1, 0, time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	var attempts atomic.Int64
	require.NoError(t, s.Submit(func(context.Context) error {
		attempts.Add(1)
		return errors.New("always")
	}))

	select {
	case got := <-s.GetErrors():
		require.ErrorIs(t, got, ErrRetriesExhausted)
	case <-time.After(5 * time.Second):
		t.Fatal("no exhaustion error reported")
	}
	require.EqualValues(t, 1, attempts.Load())
}

func TestSubmit_BackoffDelaysDouble(t *testing.T) {
	t.Parallel()

	const base = 50 * time.Millisecond
	s, err := New(context.Background(), 1, 2, base)
	require.NoError(t, err)
	defer s.Close()

	var (
		mu    sync.Mutex
		times []time.Time
	)
	require.NoError(t, s.Submit(func(context.Context) error {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		return errors.New("always")
	}))

	select {
	case <-s.GetErrors():
	case <-time.After(5 * time.Second):
		t.Fatal("no exhaustion error reported")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, times, 3)

	// Timers may fire late but never early: assert lower bounds only.
	require.GreaterOrEqual(t, times[1].Sub(times[0]), base)
	require.GreaterOrEqual(t, times[2].Sub(times[1]), 2*base)
}

func TestBackoff_DoesNotOccupyExecutor(t *testing.T) {
	t.Parallel()

	// One executor. While the failing chain waits out a long backoff window,
	// a task submitted afterwards must run, i.e. the executor is not parked
	// in a blocking sleep.
	s, err := New(context.Background(), 1, 1, 300*time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Submit(func(context.Context) error {
		return errors.New("transient")
	}))

	var ran atomic.Bool
	require.NoError(t, s.Submit(func(context.Context) error {
		ran.Store(true)
		return nil
	}))

	require.Eventually(t, func() bool { return ran.Load() },
		150*time.Millisecond, 5*time.Millisecond,
		"executor was held hostage by the backoff window")
}

func TestSubmit_PanickingTaskIsRetried(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), 1, 1, time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	var attempts atomic.Int64
	require.NoError(t, s.Submit(func(context.Context) error {
		attempts.Add(1)
		panic("kaboom")
	}))

	select {
	case got := <-s.GetErrors():
		require.ErrorIs(t, got, ErrRetriesExhausted)
		require.ErrorIs(t, got, ErrTaskPanicked)
	case <-time.After(5 * time.Second):
		t.Fatal("no exhaustion error reported")
	}
	require.EqualValues(t, 2, attempts.Load())
}

func TestRetryAttempts_StrictlyOrdered(t *testing.T) {
	t.Parallel()

	// Multiple executors must not run two attempts of the same chain
	// concurrently or out of order.
	s, err := New(context.Background(), 4, 3, time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	var (
		mu   sync.Mutex
		seen []int
	)
	var n atomic.Int64
	require.NoError(t, s.Submit(func(context.Context) error {
		cur := int(n.Add(1))
		mu.Lock()
		seen = append(seen, cur)
		mu.Unlock()
		return errors.New("always")
	}))

	select {
	case <-s.GetErrors():
	case <-time.After(5 * time.Second):
		t.Fatal("no exhaustion error reported")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestClose_RejectsNewSubmissions(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), 2, 1, time.Millisecond)
	require.NoError(t, err)

	s.Close()

	err = s.Submit(func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrSchedulerClosed)

	// Idempotent.
	s.Close()
}

func TestSubmit_NilTask(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), 1, 1, time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	require.ErrorIs(t, s.Submit(nil), ErrNilTask)
}

func TestScheduler_RecordsMetrics(t *testing.T) {
	t.Parallel()

	provider := metrics.NewBasicProvider()
	s, err := New(context.Background(), 1, 2, time.Millisecond, WithMetrics(provider))
	require.NoError(t, err)
	defer s.Close()

	// One task succeeds immediately, one exhausts.
	require.NoError(t, s.Submit(func(context.Context) error { return nil }))
	require.NoError(t, s.Submit(func(context.Context) error { return errors.New("always") }))

	select {
	case <-s.GetErrors():
	case <-time.After(5 * time.Second):
		t.Fatal("no exhaustion error reported")
	}

	attempts := provider.Counter("retry.attempts").(*metrics.BasicCounter)
	retries := provider.Counter("retry.retries.scheduled").(*metrics.BasicCounter)
	succeeded := provider.Counter("retry.tasks.succeeded").(*metrics.BasicCounter)
	exhausted := provider.Counter("retry.tasks.exhausted").(*metrics.BasicCounter)
	delays := provider.Histogram("retry.backoff.seconds").(*metrics.BasicHistogram)

	require.EqualValues(t, 4, attempts.Snapshot()) // 1 success + 3 for the failing chain
	require.EqualValues(t, 2, retries.Snapshot())
	require.EqualValues(t, 1, succeeded.Snapshot())
	require.EqualValues(t, 1, exhausted.Snapshot())
	require.EqualValues(t, 2, delays.Snapshot().Count)
}

func TestNewBackOff_DeterministicDoubling(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), 1, 5, 100*time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	bo := s.newBackOff()
	require.Equal(t, 100*time.Millisecond, bo.NextBackOff())
	require.Equal(t, 200*time.Millisecond, bo.NextBackOff())
	require.Equal(t, 400*time.Millisecond, bo.NextBackOff())
	require.Equal(t, 800*time.Millisecond, bo.NextBackOff())
}
