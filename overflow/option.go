package overflow

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/napolitain/childoverflow/counter"
)

type config struct {
	name       string
	pid        int
	iterations int
	quiet      bool
	warmup     bool
	out        io.Writer
	events     []counter.Event
	collapse   float64
	minWindow  time.Duration
	now        func() time.Time
	logger     *zap.Logger
	metrics    *Metrics
}

func defaultConfig() config {
	return config{
		name:       "unknown",
		pid:        os.Getpid(),
		iterations: 3,
		warmup:     true,
		out:        os.Stdout,
		events:     counter.DefaultEvents[:1],
		collapse:   0.1,
		minWindow:  time.Millisecond,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
}

// Option configures a Monitor.
type Option func(*config)

// WithName sets the label printed on every diagnostic line.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithIterations sets the number of burst/sample rounds.
func WithIterations(n int) Option {
	return func(c *config) {
		c.iterations = n
	}
}

// WithQuiet suppresses diagnostic lines.
func WithQuiet(quiet bool) Option {
	return func(c *config) {
		c.quiet = quiet
	}
}

// WithWarmup controls the unmeasured burst run before the clock starts.
func WithWarmup(warmup bool) Option {
	return func(c *config) {
		c.warmup = warmup
	}
}

func WithOutput(w io.Writer) Option {
	return func(c *config) {
		c.out = w
	}
}

// WithEvents replaces the armed events. Each is armed with its own threshold.
func WithEvents(events ...counter.Event) Option {
	return func(c *config) {
		c.events = events
	}
}

// WithCollapseRatio sets the fraction of the previous window's count below
// which the rate is considered collapsed.
func WithCollapseRatio(r float64) Option {
	return func(c *config) {
		c.collapse = r
	}
}

func WithMinWindow(d time.Duration) Option {
	return func(c *config) {
		c.minWindow = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

func WithPID(pid int) Option {
	return func(c *config) {
		c.pid = pid
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}
