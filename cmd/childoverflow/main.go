package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/napolitain/childoverflow/counter"
	"github.com/napolitain/childoverflow/overflow"
	"github.com/napolitain/childoverflow/workload"
)

var (
	quietFlag   = flag.Bool("q", false, "quiet: print only the verdict")
	execFlag    = flag.Bool("exec", false, "run the check in a re-executed child process")
	iterations  = flag.Int("iterations", 3, "number of workload bursts")
	burst       = flag.Duration("burst", workload.DefaultBurst, "length of one workload burst")
	verbose     = flag.Bool("v", false, "debug logging to stderr")
	metricsFile = flag.String("metrics-file", "", "write Prometheus metrics to this file after the run")
)

// childEnv marks a process started by -exec so it runs the check itself.
const childEnv = "CHILDOVERFLOW_CHILD"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: childoverflow [flags] [TESTS_QUIET]\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fatal(err)
	}
	defer logger.Sync()

	if *execFlag && os.Getenv(childEnv) == "" {
		self, err := os.Executable()
		if err != nil {
			fatal(err)
		}
		logger.Debug("starting child", zap.String("binary", self))
		code, err := runChild(self, os.Args[1:], append(os.Environ(), childEnv+"=1"))
		if err != nil {
			fatal(err)
		}
		os.Exit(code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, runConfig{
		name:        os.Args[0],
		quiet:       testsQuiet(*quietFlag, flag.Args(), os.Getenv),
		iterations:  *iterations,
		burst:       *burst,
		metricsFile: *metricsFile,
		logger:      logger,
		stdout:      os.Stdout,
	})
	stop()
	logger.Sync()
	os.Exit(code)
}

type runConfig struct {
	name        string
	quiet       bool
	iterations  int
	burst       time.Duration
	metricsFile string
	logger      *zap.Logger
	stdout      io.Writer

	// lib and work default to perf events and a CPU busy loop.
	lib  counter.Library
	work overflow.Workload
}

// run executes the check and returns the process exit code.
func run(ctx context.Context, cfg runConfig) int {
	if cfg.lib == nil {
		cfg.lib = counter.NewPerf()
	}
	if cfg.work == nil {
		cfg.work = workload.Cycles(cfg.burst)
	}

	opts := []overflow.Option{
		overflow.WithName(cfg.name),
		overflow.WithIterations(cfg.iterations),
		overflow.WithQuiet(cfg.quiet),
		overflow.WithOutput(cfg.stdout),
		overflow.WithLogger(cfg.logger),
	}
	var metrics *overflow.Metrics
	if cfg.metricsFile != "" {
		metrics = overflow.NewMetrics()
		opts = append(opts, overflow.WithMetrics(metrics))
	}

	err := overflow.New(cfg.lib, cfg.work, opts...).Run(ctx)
	if err != nil {
		cfg.logger.Debug("check ended early", zap.Error(err))
	}

	if metrics != nil {
		if werr := metrics.WriteFile(cfg.metricsFile); werr != nil {
			cfg.logger.Warn("write metrics", zap.String("file", cfg.metricsFile), zap.Error(werr))
		}
	}

	return exitCode(overflow.Report(cfg.stdout, filepath.Base(cfg.name), err))
}

// testsQuiet reports whether diagnostics are suppressed: -q, a first
// argument of TESTS_QUIET, or the TESTS_QUIET environment variable.
func testsQuiet(flagged bool, args []string, getenv func(string) string) bool {
	if flagged {
		return true
	}
	if len(args) > 0 && strings.EqualFold(args[0], "TESTS_QUIET") {
		return true
	}
	return getenv("TESTS_QUIET") != ""
}

// exitCode maps an outcome to the exit status. Skips exit 0; the harness
// tells them apart by the SKIPPED verdict line.
func exitCode(o overflow.Outcome) int {
	if o == overflow.Fail {
		return 1
	}
	return 0
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "childoverflow: %v\n", err)
	os.Exit(1)
}
