package overflow

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/napolitain/childoverflow/counter"
)

func TestReport(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	tests := []struct {
		name    string
		err     error
		want    Outcome
		verdict string
		lines   []string
	}{
		{
			name:    "pass",
			want:    Pass,
			verdict: "PASSED",
		},
		{
			name:    "collapse",
			err:     &Failure{Outcome: Fail, Msg: MsgRateChanged, File: "monitor.go", Line: 77},
			want:    Fail,
			verdict: "FAILED",
			lines:   []string{"Line # 77", "Error: Interrupt rate changed!"},
		},
		{
			name:    "skip",
			err:     &Failure{Outcome: Skip, Msg: "add event failed", Line: 12, Err: counter.ErrUnsupportedEvent},
			want:    Skip,
			verdict: "SKIPPED",
			lines:   []string{"Line # 12", "Error: add event failed: " + counter.ErrUnsupportedEvent.Error()},
		},
		{
			name:    "plain error",
			err:     errors.New("exec child: boom"),
			want:    Fail,
			verdict: "FAILED",
			lines:   []string{"Error: exec child: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := Report(&buf, "child_overflow", tt.err); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
			out := buf.String()
			first := strings.SplitN(out, "\n", 2)[0]
			if want := fmt.Sprintf("%-40s%s", "child_overflow", tt.verdict); first != want {
				t.Fatalf("expected verdict line %q, got %q", want, first)
			}
			for _, l := range tt.lines {
				if !strings.Contains(out, l+"\n") {
					t.Fatalf("expected %q in %q", l, out)
				}
			}
		})
	}
}

func TestOutcomeOf_Wrapped(t *testing.T) {
	f := &Failure{Outcome: Skip, Msg: "add event failed"}
	if got := OutcomeOf(fmt.Errorf("child: %w", f)); got != Skip {
		t.Fatalf("expected skip through wrapping, got %s", got)
	}
	if got := OutcomeOf(nil); got != Pass {
		t.Fatalf("expected pass, got %s", got)
	}
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{Outcome: Fail, Msg: "start failed", File: "monitor.go", Line: 9, Err: counter.ErrRunning}
	if got, want := f.Error(), "monitor.go:9: start failed: event set is running"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if !errors.Is(f, counter.ErrRunning) {
		t.Fatalf("expected Unwrap to expose the library error")
	}
}
