package overflow

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type reportStyles struct {
	pass  lipgloss.Style
	fail  lipgloss.Style
	skip  lipgloss.Style
	faint lipgloss.Style
}

func newReportStyles(w io.Writer) reportStyles {
	r := lipgloss.NewRenderer(w)
	if os.Getenv("NO_COLOR") != "" {
		r.SetColorProfile(termenv.Ascii)
	}
	return reportStyles{
		pass:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4")),
		fail:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		skip:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFE66D")),
		faint: r.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// Report prints the verdict for a run of name that ended with err and
// returns its outcome. The verdict is printed even in quiet mode.
func Report(w io.Writer, name string, err error) Outcome {
	st := newReportStyles(w)
	outcome := OutcomeOf(err)

	switch outcome {
	case Pass:
		fmt.Fprintf(w, "%-40s%s\n", name, st.pass.Render("PASSED"))
		return outcome
	case Skip:
		fmt.Fprintf(w, "%-40s%s\n", name, st.skip.Render("SKIPPED"))
	default:
		fmt.Fprintf(w, "%-40s%s\n", name, st.fail.Render("FAILED"))
	}

	var f *Failure
	if errors.As(err, &f) {
		fmt.Fprintf(w, "%s\n", st.faint.Render(fmt.Sprintf("Line # %d", f.Line)))
		msg := f.Msg
		if f.Err != nil {
			msg = fmt.Sprintf("%s: %v", f.Msg, f.Err)
		}
		fmt.Fprintf(w, "Error: %s\n", msg)
		return outcome
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return outcome
}
