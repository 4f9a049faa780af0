// internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/ups-poller/internal/poller"
	"github.com/tamzrod/ups-poller/internal/status"
	"github.com/tamzrod/ups-poller/internal/ups"
)

// State is the coordinator cycle state.
type State int32

const (
	Idle State = iota
	Polling
	Publishing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Publishing:
		return "publishing"
	case Failed:
		return "failed"
	}
	return "invalid"
}

// Source produces one all-or-nothing poll cycle per call.
type Source interface {
	PollOnce(ctx context.Context) poller.PollResult
}

// Observer sees every cycle result, success or failure.
type Observer interface {
	ObserveCycle(res poller.PollResult)
}

type Options struct {
	Interval   time.Duration
	StaleAfter time.Duration // <= 0 disables the stale transition

	Logger    zerolog.Logger
	Observer  Observer    // optional
	OnFailure func(error) // optional, called once per failed cycle

	Now func() time.Time // defaults to time.Now
}

// Coordinator owns the published Snapshot.
// A single worker runs the cycles; readers never block it.
type Coordinator struct {
	src  Source
	opts Options
	log  zerolog.Logger
	now  func() time.Time

	state   atomic.Int32
	current atomic.Pointer[ups.Snapshot]
	tracker *status.Tracker

	subMu      sync.Mutex
	nextID     int
	snapSubs   []*sink[ups.Snapshot]
	statusSubs []*sink[status.Snapshot]
}

// New creates a coordinator over src.
func New(src Source, opts Options) (*Coordinator, error) {
	if src == nil {
		return nil, errors.New("coordinator: source required")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("coordinator: interval must be > 0")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	c := &Coordinator{
		src:     src,
		opts:    opts,
		log:     opts.Logger,
		now:     now,
		tracker: status.NewTracker(opts.StaleAfter, now()),
	}
	c.current.Store(&ups.Snapshot{})
	return c, nil
}

// Current returns the last published Snapshot, or the empty Snapshot before
// the first successful cycle.
func (c *Coordinator) Current() ups.Snapshot {
	return *c.current.Load()
}

// State returns the current cycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Status returns the device-level status.
func (c *Coordinator) Status() status.Snapshot {
	return c.tracker.Snapshot()
}

// Subscribe registers fn for every published Snapshot.
// Each subscriber runs on its own goroutine and never delays the worker; a
// subscriber still busy with an older Snapshot receives only the latest one.
// unsubscribe waits for an in-flight delivery and must not be called from fn.
func (c *Coordinator) Subscribe(fn func(ups.Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextID++
	s := newSink(c.nextID, fn, c.log)
	c.snapSubs = append(c.snapSubs, s)
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		c.snapSubs = without(c.snapSubs, s)
		c.subMu.Unlock()
		s.close()
	}
}

// SubscribeStatus registers fn for every device status change, delivered
// the same way as Subscribe.
func (c *Coordinator) SubscribeStatus(fn func(status.Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextID++
	s := newSink(c.nextID, fn, c.log)
	c.statusSubs = append(c.statusSubs, s)
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		c.statusSubs = without(c.statusSubs, s)
		c.subMu.Unlock()
		s.close()
	}
}

// Close drops every subscriber after its pending value has been delivered.
// Call it once Run has returned.
func (c *Coordinator) Close() {
	c.subMu.Lock()
	snaps, statuses := c.snapSubs, c.statusSubs
	c.snapSubs, c.statusSubs = nil, nil
	c.subMu.Unlock()

	for _, s := range snaps {
		s.close()
	}
	for _, s := range statuses {
		s.close()
	}
}

// Cycle runs exactly one poll cycle and publishes its outcome.
// On failure the previous Snapshot stays published unchanged.
func (c *Coordinator) Cycle(ctx context.Context) poller.PollResult {
	c.setState(Polling)
	defer c.setState(Idle)

	res := c.src.PollOnce(ctx)

	if c.opts.Observer != nil {
		c.opts.Observer.ObserveCycle(res)
	}
	if res.CloseErr != nil {
		c.log.Warn().Err(res.CloseErr).Msg("transport close failed")
	}

	if res.Err != nil {
		c.setState(Failed)

		// abandoned by shutdown: not a device failure
		if ctx.Err() != nil && errors.Is(res.Err, ctx.Err()) {
			c.log.Debug().Err(res.Err).Msg("cycle abandoned")
			return res
		}

		c.logFailure(res)
		if c.opts.OnFailure != nil {
			c.opts.OnFailure(res.Err)
		}
		if st, changed := c.tracker.Failure(res.Err, c.now()); changed {
			c.publishStatus(st)
		}
		return res
	}

	c.setState(Publishing)

	snap := res.Snapshot
	c.current.Store(&snap)

	c.log.Debug().
		Dur("duration", res.Duration).
		Int("fields", snap.Len()).
		Msg("snapshot published")

	c.subMu.Lock()
	for _, s := range c.snapSubs {
		s.offer(snap)
	}
	c.subMu.Unlock()

	if st, changed := c.tracker.Success(c.now()); changed {
		c.publishStatus(st)
	}
	return res
}

// Tick advances time-derived status (seconds in error, staleness).
func (c *Coordinator) Tick(now time.Time) {
	if st, changed := c.tracker.Tick(now); changed {
		c.publishStatus(st)
	}
}

func (c *Coordinator) logFailure(res poller.PollResult) {
	ev := c.log.Error().
		Err(res.Err).
		Uint16("code", status.ErrorCode(res.Err)).
		Dur("duration", res.Duration)

	var rf *poller.ReadFailure
	var df *poller.DecodeFailure
	var ld *poller.LinkDownFailure
	switch {
	case errors.As(res.Err, &rf):
		ev = ev.Str("block", rf.Block).Uint16("address", rf.Address).Uint16("count", rf.Count).Bool("link_lost", rf.LinkLost)
	case errors.As(res.Err, &df):
		ev = ev.Str("block", df.Block).Uint16("address", df.Address).Uint16("count", df.Count)
	case errors.As(res.Err, &ld):
		ev = ev.Str("endpoint", ld.Endpoint)
	}
	ev.Msg("poll cycle failed")
}

func (c *Coordinator) publishStatus(st status.Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, s := range c.statusSubs {
		s.offer(st)
	}
}

func without[T any](subs []*sink[T], s *sink[T]) []*sink[T] {
	for i, cur := range subs {
		if cur == s {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}
