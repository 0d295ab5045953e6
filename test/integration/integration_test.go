//go:build integration

package integration

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestChildOverflowIntegration_Run(t *testing.T) {
	root := repoRoot(t)

	output, err := runCmdOutput(root, nil, "go", "run", "./cmd/childoverflow", "-burst", "200ms")
	if err != nil {
		t.Fatalf("run failed: %v\nOutput: %s", err, output)
	}
	if strings.Contains(output, "SKIPPED") {
		t.Skip("hardware counters not available")
	}
	if !strings.Contains(output, "PASSED") {
		t.Fatalf("expected PASSED, got:\n%s", output)
	}
	if strings.Count(output, "rate = ") != 3 {
		t.Errorf("expected 3 sampled windows, got:\n%s", output)
	}
}

func TestChildOverflowIntegration_Quiet(t *testing.T) {
	root := repoRoot(t)

	output, err := runCmdOutput(root, []string{"TESTS_QUIET=1"}, "go", "run", "./cmd/childoverflow", "-burst", "200ms")
	if err != nil {
		t.Fatalf("run failed: %v\nOutput: %s", err, output)
	}
	if strings.Contains(output, "rate = ") || strings.Contains(output, "num_events") {
		t.Errorf("expected no diagnostics in quiet mode, got:\n%s", output)
	}
	if !strings.Contains(output, "PASSED") && !strings.Contains(output, "SKIPPED") {
		t.Errorf("expected a verdict, got:\n%s", output)
	}
}

func TestChildOverflowIntegration_ExecChild(t *testing.T) {
	root := repoRoot(t)

	output, err := runCmdOutput(root, nil, "go", "run", "./cmd/childoverflow", "-exec", "-burst", "200ms", "TESTS_QUIET")
	if err != nil {
		t.Fatalf("exec run failed: %v\nOutput: %s", err, output)
	}
	if !strings.Contains(output, "PASSED") && !strings.Contains(output, "SKIPPED") {
		t.Errorf("expected the child's verdict, got:\n%s", output)
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found from %s", dir)
		}
		dir = parent
	}
}

func runCmdOutput(dir string, env []string, args ...string) (string, error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	return output.String(), err
}
