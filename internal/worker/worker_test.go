package worker

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"static-web-server/internal/events"
)

// waitFor polls cond until it holds or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			return false
		case <-time.After(time.Millisecond):
		}
	}
	return true
}

func TestNewPool(t *testing.T) {
	for _, size := range []int{1, 2, 4, 16} {
		pool := New(size)
		if pool.Size() != size {
			t.Errorf("expected %d workers, got %d", size, pool.Size())
		}
		if live := pool.LiveWorkers(); live != size {
			t.Errorf("expected %d live workers right after construction, got %d", size, live)
		}
		if pool.State() != StateRunning {
			t.Errorf("expected state running, got %s", pool.State())
		}
		if err := pool.Close(); err != nil {
			t.Errorf("unexpected close error: %v", err)
		}
	}
}

func TestNewPoolNonPositiveSizePanics(t *testing.T) {
	for _, size := range []int{0, -1, -5} {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("expected New(%d) to panic", size)
				}
			}()
			_ = New(size)
		}()
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()
	if config.NumWorkers != 4 {
		t.Errorf("expected 4 workers by default, got %d", config.NumWorkers)
	}
	if config.EventBus != nil {
		t.Error("expected no event bus by default")
	}
}

func TestPoolExecuteRunsEveryJobOnce(t *testing.T) {
	pool := New(4)

	const jobs = 500
	var counts [jobs]atomic.Int32
	for i := range jobs {
		idx := i
		if err := pool.Execute(func() { counts[idx].Add(1) }); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	for i := range jobs {
		if c := counts[i].Load(); c != 1 {
			t.Errorf("job %d ran %d times", i, c)
		}
	}
}

func TestPoolSingleWorkerPreservesOrder(t *testing.T) {
	pool := New(1)

	var mu sync.Mutex
	var order []int
	for i := range 20 {
		idx := i
		_ = pool.Execute(func() {
			mu.Lock()
			order = append(order, idx)
			mu.Unlock()
		})
	}
	_ = pool.Close()

	if len(order) != 20 {
		t.Fatalf("expected 20 executed jobs, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestPoolTwoWorkersFourJobs(t *testing.T) {
	pool := New(2)

	var mu sync.Mutex
	var got []int
	for i := range 4 {
		idx := i
		_ = pool.Execute(func() {
			mu.Lock()
			got = append(got, idx)
			mu.Unlock()
		})
	}

	ok := waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	})
	if !ok {
		t.Fatal("timeout waiting for jobs to complete")
	}

	done := make(chan error, 1)
	go func() { done <- pool.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected close error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close blocked with an idle pool")
	}

	mu.Lock()
	defer mu.Unlock()
	slices.Sort(got)
	if !slices.Equal(got, []int{0, 1, 2, 3}) {
		t.Errorf("expected each index exactly once, got %v", got)
	}
}

func TestPoolSingleWorkerSerializesJobs(t *testing.T) {
	start := time.Now()
	pool := New(1)
	defer pool.Close()

	secondStarted := make(chan time.Time, 1)
	_ = pool.Execute(func() { time.Sleep(100 * time.Millisecond) })
	_ = pool.Execute(func() { secondStarted <- time.Now() })

	select {
	case at := <-secondStarted:
		if elapsed := at.Sub(start); elapsed < 100*time.Millisecond {
			t.Errorf("second job started after %v, expected >= 100ms", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for second job")
	}
}

func TestPoolExecuteAfterClose(t *testing.T) {
	pool := New(2)
	if err := pool.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	var ran atomic.Bool
	err := pool.Execute(func() { ran.Store(true) })
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Error("job submitted after close must never run")
	}
}

func TestPoolExecuteNilJob(t *testing.T) {
	pool := New(1)
	defer pool.Close()

	if err := pool.Execute(nil); !errors.Is(err, ErrNilJob) {
		t.Errorf("expected ErrNilJob, got %v", err)
	}
}

func TestPoolCloseWaitsForRunningJob(t *testing.T) {
	pool := New(2)

	started := make(chan struct{})
	var finished atomic.Bool
	_ = pool.Execute(func() {
		close(started)
		time.Sleep(80 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	_ = pool.Close()

	if !finished.Load() {
		t.Error("Close returned before the running job finished")
	}
	if live := pool.LiveWorkers(); live != 0 {
		t.Errorf("expected 0 live workers after close, got %d", live)
	}
}

func TestPoolCloseDrainsQueuedJobs(t *testing.T) {
	pool := New(1)

	release := make(chan struct{})
	var counter atomic.Int32
	_ = pool.Execute(func() { <-release })
	for range 10 {
		_ = pool.Execute(func() { counter.Add(1) })
	}

	if pool.QueueLen() == 0 {
		t.Error("expected queued jobs behind the blocking job")
	}

	done := make(chan struct{})
	go func() {
		_ = pool.Close()
		close(done)
	}()

	if !waitFor(t, time.Second, func() bool { return pool.State() == StateShuttingDown }) {
		t.Fatal("expected pool to enter shutting_down")
	}
	if err := pool.Execute(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed while shutting down, got %v", err)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Close")
	}

	if counter.Load() != 10 {
		t.Errorf("expected 10 queued jobs to run before exit, got %d", counter.Load())
	}
	if pool.State() != StateStopped {
		t.Errorf("expected state stopped, got %s", pool.State())
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	pool := New(2)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Close(); err != nil {
				t.Errorf("unexpected close error: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := pool.Close(); err != nil {
		t.Errorf("unexpected error on repeated close: %v", err)
	}
}

func TestPoolWorkerFault(t *testing.T) {
	pool := New(2)

	_ = pool.Execute(func() { panic("bad job") })

	if !waitFor(t, time.Second, func() bool { return pool.LiveWorkers() == 1 }) {
		t.Fatalf("expected faulted worker to exit, live=%d", pool.LiveWorkers())
	}

	// The surviving worker keeps serving.
	var counter atomic.Int32
	for range 5 {
		_ = pool.Execute(func() { counter.Add(1) })
	}
	if !waitFor(t, time.Second, func() bool { return counter.Load() == 5 }) {
		t.Fatalf("expected surviving worker to run jobs, got %d", counter.Load())
	}

	stats := pool.Stats()
	if stats.Faults != 1 {
		t.Errorf("expected 1 fault in stats, got %d", stats.Faults)
	}

	err := pool.Close()
	var fault *FaultError
	if !errors.As(err, &fault) {
		t.Fatalf("expected FaultError from Close, got %v", err)
	}
	if fault.Value != "bad job" {
		t.Errorf("expected panic value 'bad job', got %v", fault.Value)
	}
	if len(fault.Stack) == 0 {
		t.Error("expected stack trace in fault")
	}

	// Repeated close reports the same fault.
	if !errors.As(pool.Close(), &fault) {
		t.Error("expected repeated Close to report the fault")
	}
}

func TestPoolStatsAndWorkers(t *testing.T) {
	pool := New(3)

	release := make(chan struct{})
	for range 3 {
		_ = pool.Execute(func() { <-release })
	}
	_ = pool.Execute(func() {})

	if !waitFor(t, time.Second, func() bool { return pool.Stats().Busy == 3 }) {
		t.Fatalf("expected 3 busy workers, got %+v", pool.Stats())
	}

	stats := pool.Stats()
	if stats.Size != 3 || stats.Live != 3 {
		t.Errorf("unexpected size/live: %+v", stats)
	}
	if stats.Queued != 1 {
		t.Errorf("expected 1 queued job, got %d", stats.Queued)
	}
	if stats.State != "running" {
		t.Errorf("expected state running, got %s", stats.State)
	}

	close(release)
	_ = pool.Close()

	infos := pool.Workers()
	if len(infos) != 3 {
		t.Fatalf("expected 3 worker infos, got %d", len(infos))
	}
	var executed uint64
	for i, info := range infos {
		if info.ID != i {
			t.Errorf("expected construction order, got id %d at %d", info.ID, i)
		}
		if info.Alive {
			t.Errorf("worker %d still alive after close", info.ID)
		}
		executed += info.Executed
	}
	if executed != 4 {
		t.Errorf("expected 4 executed jobs, got %d", executed)
	}
}

func TestPoolEvents(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()

	pool := NewPoolWithConfig(PoolConfig{NumWorkers: 2, EventBus: bus})
	_ = pool.Close()

	seen := map[events.EventType]int{}
	timeout := time.After(time.Second)
	for seen[events.EventPoolStopped] == 0 {
		select {
		case ev := <-ch:
			seen[ev.Type]++
		case <-timeout:
			t.Fatalf("timeout waiting for pool_stopped, saw %v", seen)
		}
	}

	if seen[events.EventWorkerStarted] != 2 {
		t.Errorf("expected 2 worker_started events, got %d", seen[events.EventWorkerStarted])
	}
	if seen[events.EventWorkerStopped] != 2 {
		t.Errorf("expected 2 worker_stopped events, got %d", seen[events.EventWorkerStopped])
	}
	if seen[events.EventPoolClosing] != 1 {
		t.Errorf("expected 1 pool_closing event, got %d", seen[events.EventPoolClosing])
	}
}

func TestPoolConcurrentExecute(t *testing.T) {
	pool := New(4)

	var counter atomic.Int32
	const numGoroutines = 10
	const jobsPerGoroutine = 100

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobsPerGoroutine {
				_ = pool.Execute(func() {
					counter.Add(1)
				})
			}
		}()
	}
	wg.Wait()
	_ = pool.Close()

	expected := int32(numGoroutines * jobsPerGoroutine)
	if counter.Load() != expected {
		t.Errorf("expected %d jobs completed, got %d", expected, counter.Load())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateCreated, "created"},
		{StateRunning, "running"},
		{StateShuttingDown, "shutting_down"},
		{StateStopped, "stopped"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}
