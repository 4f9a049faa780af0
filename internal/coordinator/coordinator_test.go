// internal/coordinator/coordinator_test.go
package coordinator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/ups-poller/internal/poller"
	"github.com/tamzrod/ups-poller/internal/status"
	"github.com/tamzrod/ups-poller/internal/ups"
)

// fakeSource replays scripted cycle results; the last one repeats.
type fakeSource struct {
	mu      sync.Mutex
	results []poller.PollResult
	calls   int
	onPoll  func(n int)
}

func (f *fakeSource) PollOnce(ctx context.Context) poller.PollResult {
	f.mu.Lock()
	f.calls++
	n := f.calls
	i := n - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	res := f.results[i]
	cb := f.onPoll
	f.mu.Unlock()

	if cb != nil {
		cb(n)
	}
	return res
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ok(values map[string]float64) poller.PollResult {
	return poller.PollResult{UnitID: "ups", Snapshot: ups.NewSnapshot(values, time.Unix(1, 0))}
}

func fail(err error) poller.PollResult {
	return poller.PollResult{UnitID: "ups", Err: err}
}

func newCoordinator(t *testing.T, src Source, opts Options) *Coordinator {
	t.Helper()
	if opts.Interval == 0 {
		opts.Interval = time.Hour
	}
	c, err := New(src, opts)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// recv waits for one delivery on ch.
func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatalf("no delivery within 2s")
		return zero
	}
}

// idle asserts nothing arrives on ch for a short while.
func idle[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNew_Validates(t *testing.T) {
	if _, err := New(nil, Options{Interval: time.Second}); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := New(&fakeSource{}, Options{}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestCurrent_EmptyBeforeFirstSuccess(t *testing.T) {
	c := newCoordinator(t, &fakeSource{results: []poller.PollResult{fail(errors.New("x"))}}, Options{})

	if !c.Current().IsEmpty() {
		t.Fatalf("expected empty snapshot before first cycle")
	}
	c.Cycle(context.Background())
	if !c.Current().IsEmpty() {
		t.Fatalf("failed first cycle must not publish")
	}
	if _, ok := c.Current().Get("UinA"); ok {
		t.Fatalf("unknown key must be unavailable")
	}
}

func TestCycle_FailureKeepsPreviousSnapshot(t *testing.T) {
	statusFail := &poller.ReadFailure{Block: ups.BlockStatus, Address: 130, Count: 1, Err: errors.New("timeout")}
	src := &fakeSource{results: []poller.PollResult{
		ok(map[string]float64{"UinA": 230.5}),
		fail(statusFail),
	}}

	var failures []error
	var logs bytes.Buffer
	c := newCoordinator(t, src, Options{
		Logger:    zerolog.New(&logs),
		OnFailure: func(err error) { failures = append(failures, err) },
	})

	c.Cycle(context.Background())
	first := c.Current()
	if v, _ := first.Get("UinA"); v != 230.5 {
		t.Fatalf("first snapshot: UinA=%v", v)
	}

	c.Cycle(context.Background())

	if !c.Current().Equal(first) {
		t.Fatalf("snapshot changed after failed cycle")
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure report, got %d", len(failures))
	}
	var rf *poller.ReadFailure
	if !errors.As(failures[0], &rf) || rf.Address != 130 {
		t.Fatalf("failure does not name address 130: %v", failures[0])
	}
	if !strings.Contains(logs.String(), `"address":130`) {
		t.Fatalf("failure log lacks address: %s", logs.String())
	}
	if st := c.Status(); st.Health != status.HealthError || st.LastErrorCode != status.ErrorCodeRead {
		t.Fatalf("status after failure: %+v", st)
	}
	if c.State() != Idle {
		t.Fatalf("state after cycle: %s", c.State())
	}
}

func TestCycle_LinkDownTwiceThenThirdAttempt(t *testing.T) {
	down := &poller.LinkDownFailure{Endpoint: "ups:502", Err: errors.New("refused")}
	src := &fakeSource{results: []poller.PollResult{
		fail(down),
		fail(down),
		ok(map[string]float64{"UinA": 1}),
	}}

	reports := 0
	c := newCoordinator(t, src, Options{OnFailure: func(error) { reports++ }})

	for i := 0; i < 3; i++ {
		c.Cycle(context.Background())
	}

	if reports != 2 {
		t.Fatalf("expected 2 failure reports, got %d", reports)
	}
	if src.Calls() != 3 {
		t.Fatalf("expected third tick attempted, calls=%d", src.Calls())
	}
	if c.Current().IsEmpty() {
		t.Fatalf("third cycle should publish")
	}
	if st := c.Status(); st.Health != status.HealthOK || st.ConsecutiveFailures != 0 {
		t.Fatalf("status after recovery: %+v", st)
	}
}

func TestSubscribe_OncePerPublication(t *testing.T) {
	src := &fakeSource{results: []poller.PollResult{
		ok(map[string]float64{"A": 1}),
		fail(errors.New("x")),
		ok(map[string]float64{"A": 2}),
	}}
	c := newCoordinator(t, src, Options{})

	first := make(chan float64, 4)
	second := make(chan float64, 4)
	c.Subscribe(func(s ups.Snapshot) {
		v, _ := s.Get("A")
		first <- v
	})
	unsub := c.Subscribe(func(s ups.Snapshot) {
		v, _ := s.Get("A")
		second <- v
	})

	c.Cycle(context.Background())
	if v := recv(t, first); v != 1 {
		t.Fatalf("first subscriber: got=%v", v)
	}
	if v := recv(t, second); v != 1 {
		t.Fatalf("second subscriber: got=%v", v)
	}

	unsub()
	c.Cycle(context.Background()) // failure: no publication
	idle(t, first)

	c.Cycle(context.Background())
	if v := recv(t, first); v != 2 {
		t.Fatalf("first subscriber: got=%v", v)
	}
	idle(t, second)
}

func TestSubscribeStatus_OnChangeOnly(t *testing.T) {
	src := &fakeSource{results: []poller.PollResult{
		ok(map[string]float64{"A": 1}),
	}}
	c := newCoordinator(t, src, Options{})

	seen := make(chan status.Snapshot, 4)
	c.SubscribeStatus(func(s status.Snapshot) { seen <- s })

	c.Cycle(context.Background())
	if st := recv(t, seen); st.Health != status.HealthOK {
		t.Fatalf("status notification: %+v", st)
	}
	c.Tick(time.Now())
	idle(t, seen)
}

func TestSubscribe_BlockingSubscriberDoesNotStallCycles(t *testing.T) {
	var results []poller.PollResult
	for i := 1; i <= 10; i++ {
		results = append(results, ok(map[string]float64{"A": float64(i)}))
	}
	src := &fakeSource{results: results}
	c, err := New(src, Options{Interval: time.Hour})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	release := make(chan struct{})
	var mu sync.Mutex
	var got []float64
	c.Subscribe(func(s ups.Snapshot) {
		<-release
		v, _ := s.Get("A")
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	start := time.Now()
	for i := 0; i < 10; i++ {
		c.Cycle(context.Background())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cycles waited on the subscriber: %s", elapsed)
	}
	if src.Calls() != 10 {
		t.Fatalf("expected 10 cycles, got %d", src.Calls())
	}
	if v, _ := c.Current().Get("A"); v != 10 {
		t.Fatalf("current: A=%v", v)
	}

	close(release)
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	// intermediate values collapse into the latest
	if len(got) == 0 || len(got) > 2 || got[len(got)-1] != 10 {
		t.Fatalf("deliveries: %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("deliveries out of order: %v", got)
		}
	}
}

func TestRun_BlockedSubscriberKeepsScheduleAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{results: []poller.PollResult{ok(map[string]float64{"A": 1})}}
	src.onPoll = func(n int) {
		if n == 20 {
			cancel()
		}
	}
	c, err := New(src, Options{Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	release := make(chan struct{})
	c.Subscribe(func(ups.Snapshot) { <-release })
	c.SubscribeStatus(func(status.Snapshot) { <-release })

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run stalled behind a blocked subscriber, calls=%d", src.Calls())
	}
	if src.Calls() < 20 {
		t.Fatalf("expected at least 20 cycles, got %d", src.Calls())
	}

	close(release)
	c.Close()
}

func TestSubscribe_PanicIsContained(t *testing.T) {
	src := &fakeSource{results: []poller.PollResult{
		ok(map[string]float64{"A": 1}),
		ok(map[string]float64{"A": 2}),
	}}
	var logs bytes.Buffer
	c, err := New(src, Options{Interval: time.Hour, Logger: zerolog.New(&logs).Level(zerolog.ErrorLevel)})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	calls := make(chan float64, 4)
	c.Subscribe(func(s ups.Snapshot) {
		v, _ := s.Get("A")
		calls <- v
		if v == 1 {
			panic("boom")
		}
	})
	others := make(chan float64, 4)
	c.Subscribe(func(s ups.Snapshot) {
		v, _ := s.Get("A")
		others <- v
	})

	c.Cycle(context.Background())
	recv(t, calls)
	recv(t, others)

	c.Cycle(context.Background())
	if v := recv(t, calls); v != 2 {
		t.Fatalf("panicking subscriber must stay subscribed, got=%v", v)
	}
	if v := recv(t, others); v != 2 {
		t.Fatalf("other subscriber: got=%v", v)
	}

	c.Close()
	if !strings.Contains(logs.String(), "subscriber panicked") {
		t.Fatalf("panic not logged: %s", logs.String())
	}
}

func TestTick_GoesStale(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	src := &fakeSource{results: []poller.PollResult{ok(map[string]float64{"A": 1})}}
	c := newCoordinator(t, src, Options{StaleAfter: 90 * time.Second, Now: clock})

	seen := make(chan uint16, 4)
	c.SubscribeStatus(func(s status.Snapshot) { seen <- s.Health })

	c.Cycle(context.Background())
	if h := recv(t, seen); h != status.HealthOK {
		t.Fatalf("health after success: %d", h)
	}
	c.Tick(now.Add(30 * time.Second))
	idle(t, seen)
	c.Tick(now.Add(90 * time.Second))
	if h := recv(t, seen); h != status.HealthStale {
		t.Fatalf("health after window: %d", h)
	}
	// stale, but still available to readers
	if c.Current().IsEmpty() {
		t.Fatalf("stale snapshot must remain readable")
	}
}

func TestCycle_AbandonedOnShutdownIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{results: []poller.PollResult{fail(context.Canceled)}}
	reports := 0
	c := newCoordinator(t, src, Options{OnFailure: func(error) { reports++ }})

	c.Cycle(ctx)
	if reports != 0 {
		t.Fatalf("shutdown must not be reported as a failure")
	}
	if c.Status().Health != status.HealthUnknown {
		t.Fatalf("status changed on shutdown: %+v", c.Status())
	}
}

type countingObserver struct{ n int }

func (o *countingObserver) ObserveCycle(poller.PollResult) { o.n++ }

func TestCycle_Observer(t *testing.T) {
	obs := &countingObserver{}
	src := &fakeSource{results: []poller.PollResult{ok(map[string]float64{"A": 1}), fail(errors.New("x"))}}
	c := newCoordinator(t, src, Options{Observer: obs})

	c.Cycle(context.Background())
	c.Cycle(context.Background())
	if obs.n != 2 {
		t.Fatalf("observer saw %d cycles, want 2", obs.n)
	}
}

func TestCycle_StatesDuringPoll(t *testing.T) {
	src := &fakeSource{results: []poller.PollResult{ok(map[string]float64{"A": 1})}}
	c := newCoordinator(t, src, Options{})

	var during State
	src.onPoll = func(int) { during = c.State() }

	c.Cycle(context.Background())
	if during != Polling || c.State() != Idle {
		t.Fatalf("states: during=%s after=%s", during, c.State())
	}
}

func TestRun_FirstCycleImmediateAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	published := make(chan struct{}, 1)
	src := &fakeSource{results: []poller.PollResult{ok(map[string]float64{"A": 1})}}
	c := newCoordinator(t, src, Options{Interval: time.Hour})
	c.Subscribe(func(ups.Snapshot) {
		select {
		case published <- struct{}{}:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatalf("first cycle did not run immediately")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
	if src.Calls() != 1 {
		t.Fatalf("expected a single cycle, got %d", src.Calls())
	}
}

func TestRun_NoOverlap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	src := &fakeSource{results: []poller.PollResult{ok(map[string]float64{"A": 1})}}
	src.onPoll = func(n int) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		// overrun the interval
		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()

		if n == 5 {
			cancel()
		}
	}

	c := newCoordinator(t, src, Options{Interval: time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight != 1 {
		t.Fatalf("cycles overlapped: max in flight %d", maxInFlight)
	}
	if src.Calls() < 5 {
		t.Fatalf("expected at least 5 cycles, got %d", src.Calls())
	}
}

func TestState_String(t *testing.T) {
	if Failed.String() != "failed" || State(9).String() != "invalid" {
		t.Fatalf("unexpected state names")
	}
}
