// internal/ups/snapshot.go
package ups

import (
	"sort"
	"time"
)

// Snapshot is one complete, self-consistent set of decoded fields.
// It is immutable: the zero value is the empty snapshot seen before the
// first successful cycle.
type Snapshot struct {
	values map[string]float64
	at     time.Time
}

// NewSnapshot copies values into a new Snapshot taken at at.
func NewSnapshot(values map[string]float64, at time.Time) Snapshot {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Snapshot{values: cp, at: at}
}

// Get returns the value of key. ok is false for unknown keys.
func (s Snapshot) Get(key string) (float64, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Code returns a status field as its integer code.
func (s Snapshot) Code(key string) (uint16, bool) {
	v, ok := s.values[key]
	if !ok {
		return 0, false
	}
	return uint16(v), true
}

// At is the time the snapshot was acquired.
func (s Snapshot) At() time.Time { return s.at }

// Len is the number of fields.
func (s Snapshot) Len() int { return len(s.values) }

// IsEmpty reports whether no cycle has produced this snapshot yet.
func (s Snapshot) IsEmpty() bool { return len(s.values) == 0 }

// Keys returns the field keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of all fields.
func (s Snapshot) Values() map[string]float64 {
	cp := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

// Equal compares field values only, ignoring acquisition time.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.values) != len(o.values) {
		return false
	}
	for k, v := range s.values {
		ov, ok := o.values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}
