// Package counter is the boundary to a hardware performance-counter library:
// event sets, overflow registration and start/stop of counting.
package counter

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the library interface version this module is written against.
const Version = "v7.0.1"

var (
	ErrNotInitialized   = errors.New("library not initialized")
	ErrVersionMismatch  = errors.New("library interface version mismatch")
	ErrUnsupportedEvent = errors.New("event not supported on this hardware")
	ErrNoOverflow       = errors.New("no overflow registered for event")
	ErrRunning          = errors.New("event set is running")
	ErrNotRunning       = errors.New("event set is not running")
)

// Overflow describes a single threshold crossing delivered to a handler.
type Overflow struct {
	EventSet int
	Event    Event
	// Vector has bit i set when the i-th event of the set overflowed.
	Vector uint64
}

// OverflowHandler is invoked asynchronously every time an armed counter
// crosses its threshold. It must not block, lock or allocate.
type OverflowHandler func(Overflow)

// Library is the entry point of a counting library.
type Library interface {
	// Init initializes the library and returns the interface version it
	// provides. An error is returned when want cannot be satisfied.
	Init(want string) (string, error)
	CreateEventSet() (EventSet, error)
	Shutdown() error
}

// EventSet is a group of counters started and stopped as a unit.
type EventSet interface {
	ID() int
	Add(ev Event) error
	Overflow(ev Event, threshold uint64, handler OverflowHandler) error
	Start() error
	// Stop stops counting and discards the final values.
	Stop() error
	Close() error
}

// Flusher is implemented by event sets that can synchronously deliver
// overflows that are still pending when a caller samples its counts.
type Flusher interface {
	Flush()
}

// CheckVersion reports whether a library providing got satisfies a caller
// that wants the interface version want.
func CheckVersion(want, got string) error {
	if !semver.IsValid(want) || !semver.IsValid(got) {
		return fmt.Errorf("%w: invalid version (want %q, got %q)", ErrVersionMismatch, want, got)
	}
	if semver.Major(want) != semver.Major(got) || semver.Compare(got, want) < 0 {
		return fmt.Errorf("%w: want %s, got %s", ErrVersionMismatch, want, got)
	}
	return nil
}
