//go:build !linux

package counter

import "fmt"

// perfLibrary is a stub for systems without perf events. It initializes so
// that callers reach event configuration and report the event as unsupported.
type perfLibrary struct {
	initialized bool
	nextID      int
}

// NewPerf returns a Library whose event sets reject every event.
func NewPerf() Library {
	return &perfLibrary{}
}

func (l *perfLibrary) Init(want string) (string, error) {
	if err := CheckVersion(want, Version); err != nil {
		return Version, err
	}
	l.initialized = true
	return Version, nil
}

func (l *perfLibrary) CreateEventSet() (EventSet, error) {
	if !l.initialized {
		return nil, ErrNotInitialized
	}
	l.nextID++
	return &perfEventSet{id: l.nextID}, nil
}

func (l *perfLibrary) Shutdown() error {
	l.initialized = false
	return nil
}

type perfEventSet struct {
	id int
}

func (s *perfEventSet) ID() int { return s.id }

func (s *perfEventSet) Add(ev Event) error {
	return fmt.Errorf("%s: %w: perf events are only available on Linux", ev, ErrUnsupportedEvent)
}

func (s *perfEventSet) Overflow(ev Event, _ uint64, _ OverflowHandler) error {
	return fmt.Errorf("%s: event not in set", ev)
}

func (s *perfEventSet) Start() error { return ErrNotRunning }
func (s *perfEventSet) Stop() error  { return ErrNotRunning }
func (s *perfEventSet) Close() error { return nil }
