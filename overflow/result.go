package overflow

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Outcome is the verdict of a check run.
type Outcome int

const (
	Pass Outcome = iota
	Fail
	Skip
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MsgRateChanged is the failure message for a collapsed interrupt rate.
const MsgRateChanged = "Interrupt rate changed!"

// Failure ends a run early. Outcome is Fail for defects and Skip when the
// check does not apply to the hardware.
type Failure struct {
	Outcome Outcome
	Msg     string
	File    string
	Line    int
	Err     error
}

func (f *Failure) Error() string {
	loc := fmt.Sprintf("%s:%d", f.File, f.Line)
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", loc, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", loc, f.Msg)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// OutcomeOf maps the error returned by Monitor.Run to a verdict. Errors that
// are not a *Failure count as Fail.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Pass
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Outcome
	}
	return Fail
}

func fail(err error, msg string) *Failure {
	return newFailure(Fail, err, msg)
}

func skip(err error, msg string) *Failure {
	return newFailure(Skip, err, msg)
}

func newFailure(o Outcome, err error, msg string) *Failure {
	f := &Failure{Outcome: o, Msg: msg, Err: err}
	if _, file, line, ok := runtime.Caller(2); ok {
		f.File = filepath.Base(file)
		f.Line = line
	}
	return f
}
