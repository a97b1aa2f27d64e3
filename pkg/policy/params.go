// Tempo selects cache parameters per key from declarative rules. This module defines the parameter
// record those rules map to: a time window broken into calendar components, a store capacity, and an
// optional snapshot blob location.

package policy

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultCapacity is the store capacity used when a rule doesn't set one.
const DefaultCapacity = 128

// Fixed conversions to seconds. Months and years are calendar-free by design: a month is 30 days
// and a year is 365 days, always.
const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
	secondsPerWeek   = 7 * secondsPerDay
	secondsPerMonth  = 30 * secondsPerDay
	secondsPerYear   = 365 * secondsPerDay
)

// Span is a wall-clock window decomposed into calendar components.
type Span struct {
	Seconds int
	Minutes int
	Hours   int
	Days    int
	Weeks   int
	Months  int
	Years   int
}

// TotalSeconds returns the window length with the fixed component conversions applied.
func (s Span) TotalSeconds() int64 {
	return int64(s.Seconds) +
		int64(s.Minutes)*secondsPerMinute +
		int64(s.Hours)*secondsPerHour +
		int64(s.Days)*secondsPerDay +
		int64(s.Weeks)*secondsPerWeek +
		int64(s.Months)*secondsPerMonth +
		int64(s.Years)*secondsPerYear
}

// Duration returns the window as a time.Duration.
func (s Span) Duration() time.Duration {
	return time.Duration(s.TotalSeconds()) * time.Second
}

// IsZero reports whether no component is set.
func (s Span) IsZero() bool {
	return s == Span{}
}

// validate rejects negative components. A window can be absent (all zero, the gate never
// auto-expires) but never negative.
func (s Span) validate() error {
	for _, component := range []struct {
		name  string
		value int
	}{
		{"seconds", s.Seconds}, {"minutes", s.Minutes}, {"hours", s.Hours}, {"days", s.Days},
		{"weeks", s.Weeks}, {"months", s.Months}, {"years", s.Years},
	} {
		if component.value < 0 {
			return fmt.Errorf("duration component %s is negative (%d)", component.name, component.value)
		}
	}
	return nil
}

// Params is the resolved cache parameter record for a key.
type Params struct {
	Span     Span   // Invalidation window; zero means entries only leave via eviction or manual clears.
	Capacity int    // Maximum store entries; zero means DefaultCapacity.
	Persist  string // Snapshot blob location; empty means in-memory only.
}

// IsZero reports whether the record carries no parameters at all, meaning "do not cache".
func (p Params) IsZero() bool {
	return p == Params{}
}

// EffectiveCapacity returns the capacity with the default applied.
func (p Params) EffectiveCapacity() int {
	if p.Capacity <= 0 {
		return DefaultCapacity
	}
	return p.Capacity
}

// validate rejects records that can't be used to build a store.
func (p Params) validate() error {
	if err := p.Span.validate(); err != nil {
		return err
	}
	if p.Capacity < 0 {
		return fmt.Errorf("capacity is negative (%d)", p.Capacity)
	}
	return nil
}

// Fingerprint returns a stable identity for the record, treating it as an order-independent set of
// normalized parameters: two records naming the same total window, effective capacity and persist
// location share a fingerprint and therefore share a cache instance.
func (p Params) Fingerprint() uint64 {
	digest := xxhash.New()
	_, _ = fmt.Fprintf(digest, "capacity=%d;persist=%s;window=%d", p.EffectiveCapacity(), p.Persist, p.Span.TotalSeconds())
	return digest.Sum64()
}
