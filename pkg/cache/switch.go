// This module implements the global disable switch. When disabled, every temporal gate reading the
// switch purges its store and calls the raw loader directly, restoring passthrough semantics. The
// switch is meant for debugging and test isolation, not for high-frequency toggling under load.

package cache

import "sync/atomic"

// Switch is a process-wide caching kill switch read by temporal gates on every call.
// The zero value is enabled.
type Switch struct {
	disabled atomic.Bool
}

// Disable turns caching off for every gate holding this switch.
func (s *Switch) Disable() { s.disabled.Store(true) }

// Enable turns caching back on. Stores purged while disabled stay empty until repopulated.
func (s *Switch) Enable() { s.disabled.Store(false) }

// Disabled reports whether caching is currently off.
func (s *Switch) Disabled() bool { return s.disabled.Load() }

// defaultSwitch is the outermost composition boundary: gates built without an explicit switch
// share this one. Tests should instantiate their own Switch instead of toggling the default.
var defaultSwitch Switch

// DefaultSwitch returns the process-wide switch.
func DefaultSwitch() *Switch { return &defaultSwitch }

// Disable turns off caching process-wide.
func Disable() { defaultSwitch.Disable() }

// Enable turns caching back on process-wide.
func Enable() { defaultSwitch.Enable() }
