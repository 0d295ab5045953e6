// Package countertest provides a scripted counter.Library for tests.
package countertest

import (
	"fmt"
	"sync"

	"github.com/napolitain/childoverflow/counter"
)

// Library is an in-memory counter.Library. Setting one of the Err fields
// makes the matching call fail with that error.
type Library struct {
	Version string

	InitErr     error
	CreateErr   error
	AddErr      error
	OverflowErr error
	StartErr    error
	StopErr     error

	mu    sync.Mutex
	calls []string
	sets  []*EventSet
}

// New returns a Library that reports counter.Version.
func New() *Library {
	return &Library{Version: counter.Version}
}

func (l *Library) Init(want string) (string, error) {
	l.record("init")
	if l.InitErr != nil {
		return l.Version, l.InitErr
	}
	if err := counter.CheckVersion(want, l.Version); err != nil {
		return l.Version, err
	}
	return l.Version, nil
}

func (l *Library) CreateEventSet() (counter.EventSet, error) {
	l.record("create")
	if l.CreateErr != nil {
		return nil, l.CreateErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &EventSet{lib: l, id: len(l.sets) + 1}
	l.sets = append(l.sets, s)
	return s, nil
}

func (l *Library) Shutdown() error {
	l.record("shutdown")
	return nil
}

// Calls returns the names of the calls made so far, in order.
func (l *Library) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Set returns the most recently created event set, or nil.
func (l *Library) Set() *EventSet {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sets) == 0 {
		return nil
	}
	return l.sets[len(l.sets)-1]
}

// Fire delivers n overflows to every armed handler of the latest event set.
func (l *Library) Fire(n int) {
	if s := l.Set(); s != nil {
		s.Fire(n)
	}
}

func (l *Library) record(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

type armed struct {
	ev        counter.Event
	threshold uint64
	handler   counter.OverflowHandler
}

// EventSet is the counter.EventSet returned by Library.
type EventSet struct {
	lib     *Library
	id      int
	events  []counter.Event
	armed   []armed
	running bool
}

func (s *EventSet) ID() int { return s.id }

func (s *EventSet) Add(ev counter.Event) error {
	s.lib.record("add " + ev.Name)
	if s.lib.AddErr != nil {
		return s.lib.AddErr
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *EventSet) Overflow(ev counter.Event, threshold uint64, handler counter.OverflowHandler) error {
	s.lib.record(fmt.Sprintf("overflow %s %d", ev.Name, threshold))
	if s.lib.OverflowErr != nil {
		return s.lib.OverflowErr
	}
	s.armed = append(s.armed, armed{ev: ev, threshold: threshold, handler: handler})
	return nil
}

func (s *EventSet) Start() error {
	s.lib.record("start")
	if s.lib.StartErr != nil {
		return s.lib.StartErr
	}
	if s.running {
		return counter.ErrRunning
	}
	s.running = true
	return nil
}

func (s *EventSet) Stop() error {
	s.lib.record("stop")
	if s.lib.StopErr != nil {
		return s.lib.StopErr
	}
	if !s.running {
		return counter.ErrNotRunning
	}
	s.running = false
	return nil
}

func (s *EventSet) Close() error {
	s.running = false
	return nil
}

// Events returns the events added to the set.
func (s *EventSet) Events() []counter.Event {
	return append([]counter.Event(nil), s.events...)
}

// Thresholds returns the armed threshold per event name.
func (s *EventSet) Thresholds() map[string]uint64 {
	m := make(map[string]uint64, len(s.armed))
	for _, a := range s.armed {
		m[a.ev.Name] = a.threshold
	}
	return m
}

// Fire invokes every armed handler n times.
func (s *EventSet) Fire(n int) {
	for i := 0; i < n; i++ {
		for bit, a := range s.armed {
			a.handler(counter.Overflow{EventSet: s.id, Event: a.ev, Vector: 1 << uint(bit)})
		}
	}
}
