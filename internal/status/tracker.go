// internal/status/tracker.go
package status

import (
	"sync"
	"time"
)

// Tracker owns the device-level status truth.
// It is fed with cycle outcomes and a 1 Hz tick and reports whether the
// delivered Snapshot changed.
type Tracker struct {
	mu sync.Mutex

	staleAfter time.Duration
	started    time.Time
	errorSince time.Time

	snap Snapshot
}

// NewTracker starts in HealthUnknown at start.
// staleAfter <= 0 disables the stale transition.
func NewTracker(staleAfter time.Duration, start time.Time) *Tracker {
	return &Tracker{
		staleAfter: staleAfter,
		started:    start,
		snap:       Snapshot{Health: HealthUnknown},
	}
}

// Snapshot returns the current status.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Success records a successful cycle finished at at.
func (t *Tracker) Success(at time.Time) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snap

	t.snap.Health = HealthOK
	t.snap.LastErrorCode = ErrorCodeNone
	t.snap.LastError = ""
	t.snap.SecondsInError = 0
	t.snap.ConsecutiveFailures = 0
	t.snap.LastSuccess = at
	t.errorSince = time.Time{}

	return t.snap, prev != t.snap
}

// Failure records a failed cycle finished at at.
func (t *Tracker) Failure(err error, at time.Time) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snap

	if t.errorSince.IsZero() {
		t.errorSince = at
	}
	t.snap.LastErrorCode = ErrorCode(err)
	if err != nil {
		t.snap.LastError = err.Error()
	}
	t.snap.ConsecutiveFailures++
	t.snap.SecondsInError = t.secondsInError(at)
	t.snap.Health = t.unhealthy(at)

	return t.snap, prev != t.snap
}

// Tick advances time-derived fields. Called at 1 Hz by the owner.
func (t *Tracker) Tick(now time.Time) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snap

	switch t.snap.Health {
	case HealthOK:
		if t.expired(t.snap.LastSuccess, now) {
			t.snap.Health = HealthStale
		}
	case HealthUnknown:
		if t.expired(t.started, now) {
			t.snap.Health = HealthStale
		}
	case HealthError, HealthStale:
		t.snap.SecondsInError = t.secondsInError(now)
		t.snap.Health = t.unhealthy(now)
	}

	return t.snap, prev != t.snap
}

func (t *Tracker) unhealthy(now time.Time) uint16 {
	ref := t.snap.LastSuccess
	if ref.IsZero() {
		ref = t.started
	}
	if t.expired(ref, now) {
		return HealthStale
	}
	return HealthError
}

func (t *Tracker) expired(ref, now time.Time) bool {
	return t.staleAfter > 0 && now.Sub(ref) >= t.staleAfter
}

// seconds_in_error MUST NOT wrap
func (t *Tracker) secondsInError(now time.Time) uint16 {
	if t.errorSince.IsZero() {
		return 0
	}
	secs := int64(now.Sub(t.errorSince) / time.Second)
	if secs < 0 {
		return 0
	}
	if secs > SecondsInErrorMax {
		return SecondsInErrorMax
	}
	return uint16(secs)
}
