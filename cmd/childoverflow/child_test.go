package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
)

// TestHelperProcess is not a real test. runChild tests execute the test
// binary with -test.run pointing here to stand in for a child check.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(childEnv) != "1" {
		return
	}
	code, _ := strconv.Atoi(os.Getenv("HELPER_EXIT"))
	fmt.Printf("[%d] child, exit %d\n", os.Getpid(), code)
	// os.Exit(0) panics inside a test; returning exits 0.
	if code != 0 {
		os.Exit(code)
	}
}

func TestRunChild_PropagatesExitCode(t *testing.T) {
	for _, want := range []int{0, 1, 3} {
		env := append(os.Environ(), childEnv+"=1", fmt.Sprintf("HELPER_EXIT=%d", want))

		var code int
		var err error
		out := captureOutput(t, func() {
			code, err = runChild(os.Args[0], []string{"-test.run=^TestHelperProcess$"}, env)
		})
		if err != nil {
			t.Fatalf("runChild: %v", err)
		}
		if code != want {
			t.Fatalf("expected exit %d, got %d", want, code)
		}
		if !strings.Contains(out, fmt.Sprintf("child, exit %d", want)) {
			t.Fatalf("expected child output, got %q", out)
		}
		if strings.Contains(out, fmt.Sprintf("[%d]", os.Getpid())) {
			t.Fatalf("child must run in its own process: %q", out)
		}
	}
}

func TestRunChild_MissingBinary(t *testing.T) {
	if _, err := runChild("/nonexistent/childoverflow", nil, os.Environ()); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}
