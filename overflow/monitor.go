// Package overflow checks that counter overflow notifications keep arriving
// at a stable rate across repeated workload bursts.
package overflow

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/napolitain/childoverflow/counter"
)

// Workload produces the activity the armed counters observe.
type Workload interface {
	Burst(ctx context.Context) error
}

// Counters holds the interrupt counts updated by the overflow handler.
type Counters struct {
	count atomic.Int64
	total atomic.Int64
}

// Handle records one overflow. It only does two atomic adds and is safe to
// run at any point of the workload.
func (c *Counters) Handle(counter.Overflow) {
	c.count.Add(1)
	c.total.Add(1)
}

// Count returns the overflows seen in the current window.
func (c *Counters) Count() int64 { return c.count.Load() }

// Total returns the overflows seen since the run started.
func (c *Counters) Total() int64 { return c.total.Load() }

// Window is one sample between two workload bursts.
type Window struct {
	Index   int
	Start   time.Time
	Elapsed float64 // seconds since the run started
	Since   float64 // seconds since the previous sample, floored
	Count   int64
	Total   int64
	Rate    float64 // overflows per second
}

// Monitor runs the overflow-rate check against a counting library.
type Monitor struct {
	lib  counter.Library
	work Workload
	cfg  config

	counters Counters
	handler  counter.OverflowHandler

	start   time.Time
	last    time.Time
	prev    int64
	windows []Window
}

// New returns a Monitor that arms lib's counters and drives work.
func New(lib counter.Library, work Workload, opts ...Option) *Monitor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Monitor{
		lib:  lib,
		work: work,
		cfg:  cfg,
		prev: -1,
	}
	m.handler = m.counters.Handle
	return m
}

// Counters exposes the handler state.
func (m *Monitor) Counters() *Counters {
	return &m.counters
}

// Windows returns the samples taken so far.
func (m *Monitor) Windows() []Window {
	return append([]Window(nil), m.windows...)
}

// Run configures the counters, drives the workload and compares interrupt
// counts between windows. It returns nil on pass and a *Failure otherwise.
//
// The calling goroutine is locked to its OS thread for the duration of the
// run so that per-thread counters observe the workload.
func (m *Monitor) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := m.run(ctx)
	if m.cfg.metrics != nil {
		m.cfg.metrics.SetOutcome(OutcomeOf(err))
	}
	return err
}

func (m *Monitor) run(ctx context.Context) error {
	log := m.cfg.logger.With(zap.String("name", m.cfg.name))

	if m.cfg.warmup {
		if err := m.work.Burst(ctx); err != nil {
			return fail(err, "warm-up workload failed")
		}
	}

	m.start = m.cfg.now()
	m.last = m.start
	m.prev = -1
	m.windows = nil
	m.counters.count.Store(0)
	m.counters.total.Store(0)

	version, err := m.lib.Init(counter.Version)
	if err != nil {
		return fail(err, "library init failed")
	}
	defer m.lib.Shutdown()
	log.Debug("library initialized", zap.String("version", version))

	m.printf("[%d] %s, num_events = %d\n", m.cfg.pid, m.cfg.name, len(m.cfg.events))

	set, err := m.lib.CreateEventSet()
	if err != nil {
		return fail(err, "create event set failed")
	}
	defer set.Close()

	for _, ev := range m.cfg.events {
		if err := set.Add(ev); err != nil {
			m.printf("Trouble adding event.\n")
			return skip(err, "add event failed")
		}
	}

	for _, ev := range m.cfg.events {
		if err := set.Overflow(ev, ev.Threshold, m.handler); err != nil {
			return fail(err, "overflow registration failed")
		}
		log.Debug("overflow armed", zap.Stringer("event", ev), zap.Uint64("threshold", ev.Threshold))
	}

	if err := set.Start(); err != nil {
		return fail(err, "start failed")
	}

	for n := 1; n <= m.cfg.iterations; n++ {
		if err := ctx.Err(); err != nil {
			return fail(err, "run cancelled")
		}
		if err := m.work.Burst(ctx); err != nil {
			return fail(err, "workload failed")
		}
		if err := m.sample(set, log); err != nil {
			return err
		}
	}

	m.printf("[%d] %s, stop\n", m.cfg.pid, m.cfg.name)

	if err := set.Stop(); err != nil {
		return fail(err, "stop failed")
	}

	m.printf("[%d] %s, end\n", m.cfg.pid, m.cfg.name)
	return nil
}

// sample closes the current window, prints its rate and fails if its count
// dropped below the collapse ratio of the previous window. The first window
// has no baseline and always passes.
func (m *Monitor) sample(set counter.EventSet, log *zap.Logger) error {
	if f, ok := set.(counter.Flusher); ok {
		f.Flush()
	}

	now := m.cfg.now()
	since := now.Sub(m.last)
	if since <= m.cfg.minWindow {
		since = m.cfg.minWindow
	}

	count := m.counters.count.Swap(0)
	w := Window{
		Index:   len(m.windows) + 1,
		Start:   m.last,
		Elapsed: now.Sub(m.start).Seconds(),
		Since:   since.Seconds(),
		Count:   count,
		Total:   m.counters.total.Load(),
	}
	w.Rate = float64(w.Count) / w.Since
	m.windows = append(m.windows, w)

	m.printf("[%d] %s, time = %.3f, total = %d, last = %d, rate = %.1f/sec\n",
		m.cfg.pid, m.cfg.name, w.Elapsed, w.Total, w.Count, w.Rate)
	log.Debug("window sampled",
		zap.Int("window", w.Index),
		zap.Int64("count", w.Count),
		zap.Int64("total", w.Total),
		zap.Float64("rate", w.Rate))
	if m.cfg.metrics != nil {
		m.cfg.metrics.Observe(w)
	}

	if m.prev >= 0 && float64(count) < m.cfg.collapse*float64(m.prev) {
		log.Debug("interrupt rate collapsed", zap.Int64("previous", m.prev), zap.Int64("count", count))
		return fail(nil, MsgRateChanged)
	}

	m.prev = count
	m.last = now
	return nil
}

func (m *Monitor) printf(format string, args ...any) {
	if m.cfg.quiet {
		return
	}
	fmt.Fprintf(m.cfg.out, format, args...)
}
