//go:build linux

package counter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// perfLibrary implements Library on top of perf_event_open(2).
type perfLibrary struct {
	mu          sync.Mutex
	initialized bool
	nextID      int
}

// NewPerf returns a Library backed by Linux perf events.
//
// Counters are opened for the calling thread when an event set is started, so
// callers must keep the goroutine that starts the set locked to its OS thread
// (runtime.LockOSThread) for as long as they want it counted.
func NewPerf() Library {
	return &perfLibrary{}
}

func (l *perfLibrary) Init(want string) (string, error) {
	if err := CheckVersion(want, Version); err != nil {
		return Version, err
	}
	l.mu.Lock()
	l.initialized = true
	l.mu.Unlock()
	return Version, nil
}

func (l *perfLibrary) CreateEventSet() (EventSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return nil, ErrNotInitialized
	}
	l.nextID++
	return &perfEventSet{id: l.nextID}, nil
}

func (l *perfLibrary) Shutdown() error {
	l.mu.Lock()
	l.initialized = false
	l.mu.Unlock()
	return nil
}

// perfCounter is one event of a set. fd is only valid while the set runs.
type perfCounter struct {
	ev        Event
	fd        int
	threshold uint64
	handler   OverflowHandler
	seen      uint64
}

type perfEventSet struct {
	id       int
	counters []*perfCounter
	running  bool

	// mu serializes overflow dispatch between the signal goroutine and Flush.
	mu   sync.Mutex
	sigs chan os.Signal
	done chan struct{}
	wg   sync.WaitGroup
}

func (s *perfEventSet) ID() int { return s.id }

// Add validates that the kernel can count ev by opening and closing a probe
// counter for it.
func (s *perfEventSet) Add(ev Event) error {
	if s.running {
		return ErrRunning
	}
	if !ev.Generic {
		return fmt.Errorf("%s: %w", ev, ErrUnsupportedEvent)
	}
	for _, c := range s.counters {
		if c.ev == ev {
			return fmt.Errorf("%s: already added", ev)
		}
	}

	attr := perfAttr(ev, 0)
	fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return openError(ev, err)
	}
	unix.Close(fd)

	s.counters = append(s.counters, &perfCounter{ev: ev, fd: -1})
	return nil
}

func (s *perfEventSet) Overflow(ev Event, threshold uint64, handler OverflowHandler) error {
	if s.running {
		return ErrRunning
	}
	if threshold == 0 || handler == nil {
		return fmt.Errorf("%s: overflow needs a threshold and a handler", ev)
	}
	for _, c := range s.counters {
		if c.ev == ev {
			c.threshold = threshold
			c.handler = handler
			return nil
		}
	}
	return fmt.Errorf("%s: event not in set", ev)
}

// Start opens the counters as one group on the calling thread, arms
// asynchronous notification for the ones with an overflow handler and
// enables the group.
func (s *perfEventSet) Start() error {
	if s.running {
		return ErrRunning
	}
	if len(s.counters) == 0 {
		return errors.New("event set is empty")
	}

	leader := -1
	for _, c := range s.counters {
		attr := perfAttr(c.ev, c.threshold)
		fd, err := unix.PerfEventOpen(&attr, 0, -1, leader, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			s.closeFDs()
			return fmt.Errorf("perf_event_open for %s: %w (try: sudo sysctl kernel.perf_event_paranoid=-1)", c.ev, err)
		}
		c.fd = fd
		c.seen = 0
		if leader < 0 {
			leader = fd
		}
	}

	s.sigs = make(chan os.Signal, 64)
	signal.Notify(s.sigs, unix.SIGIO)
	for _, c := range s.counters {
		if c.handler == nil {
			continue
		}
		if err := setAsync(c.fd); err != nil {
			s.teardown()
			return fmt.Errorf("arm overflow for %s: %w", c.ev, err)
		}
	}

	if err := unix.IoctlSetInt(leader, unix.PERF_EVENT_IOC_RESET, unix.PERF_IOC_FLAG_GROUP); err != nil {
		s.teardown()
		return fmt.Errorf("reset counters: %w", err)
	}
	if err := unix.IoctlSetInt(leader, unix.PERF_EVENT_IOC_ENABLE, unix.PERF_IOC_FLAG_GROUP); err != nil {
		s.teardown()
		return fmt.Errorf("enable counters: %w", err)
	}

	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.dispatch()
	s.running = true
	return nil
}

func (s *perfEventSet) Stop() error {
	if !s.running {
		return ErrNotRunning
	}
	var err error
	if leader := s.counters[0].fd; leader >= 0 {
		err = unix.IoctlSetInt(leader, unix.PERF_EVENT_IOC_DISABLE, unix.PERF_IOC_FLAG_GROUP)
	}
	close(s.done)
	s.wg.Wait()
	s.teardown()
	s.running = false
	if err != nil {
		return fmt.Errorf("disable counters: %w", err)
	}
	return nil
}

func (s *perfEventSet) Close() error {
	if s.running {
		return s.Stop()
	}
	return nil
}

// Flush delivers overflows that happened since the last signal was handled.
func (s *perfEventSet) Flush() {
	s.deliver()
}

func (s *perfEventSet) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.sigs:
			s.deliver()
		}
	}
}

// deliver reads every armed counter and calls its handler once per threshold
// crossed since the previous read. SIGIO is not queued, so several overflows
// can arrive as a single signal.
func (s *perfEventSet) deliver() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.counters {
		if c.handler == nil || c.fd < 0 {
			continue
		}
		value, err := readCount(c.fd)
		if err != nil {
			continue
		}
		crossed := value / c.threshold
		for ; c.seen < crossed; c.seen++ {
			c.handler(Overflow{EventSet: s.id, Event: c.ev, Vector: 1 << uint(i)})
		}
	}
}

func (s *perfEventSet) teardown() {
	if s.sigs != nil {
		signal.Stop(s.sigs)
		s.sigs = nil
	}
	s.closeFDs()
}

func (s *perfEventSet) closeFDs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Close members before the leader.
	for i := len(s.counters) - 1; i >= 0; i-- {
		c := s.counters[i]
		if c.fd >= 0 {
			unix.Close(c.fd)
			c.fd = -1
		}
	}
}

func perfAttr(ev Event, period uint64) unix.PerfEventAttr {
	attr := unix.PerfEventAttr{
		Type:   ev.Type,
		Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config: ev.Config,
		Bits:   unix.PerfBitDisabled | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
	}
	if period > 0 {
		attr.Sample = period
		attr.Wakeup = 1
	}
	return attr
}

// setAsync routes overflow wakeups on fd to this process as SIGIO.
func setAsync(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return err
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_ASYNC|unix.O_NONBLOCK); err != nil {
		return err
	}
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETOWN, unix.Getpid())
	return err
}

func readCount(fd int) (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, fmt.Errorf("short read: got %d bytes", n)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

func openError(ev Event, err error) error {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.EOPNOTSUPP),
		errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENODEV):
		return fmt.Errorf("%s: %w: %v", ev, ErrUnsupportedEvent, err)
	default:
		return fmt.Errorf("perf_event_open for %s: %w", ev, err)
	}
}
