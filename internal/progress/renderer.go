package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// BarRenderer draws a two-line progress display (status + bar) on a TTY,
// or prints timestamped single lines on a non-TTY.
type BarRenderer struct {
	out       io.Writer
	start     time.Time
	isTTY     bool
	width     int
	lastEvent Event
	lines     int // number of lines currently written (for TTY overwrite)
}

// NewBarRenderer creates a renderer that writes to out.
// It auto-detects TTY mode and terminal width.
func NewBarRenderer(out *os.File) *BarRenderer {
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())

	width := 80
	if tty {
		if w, _, err := term.GetSize(out.Fd()); err == nil && w > 0 {
			width = w
		}
	}
	return newRenderer(out, tty, width)
}

func newRenderer(out io.Writer, tty bool, width int) *BarRenderer {
	return &BarRenderer{
		out:   out,
		start: time.Now(),
		isTTY: tty,
		width: width,
	}
}

// Handle processes a progress event. It satisfies the Callback type.
func (r *BarRenderer) Handle(e Event) {
	e.Elapsed = time.Since(r.start)
	if e.Stage != StageReport {
		r.lastEvent = e
	}

	if r.isTTY {
		r.renderTTY(e)
	} else {
		r.renderPlain(e)
	}
}

// Finish clears the progress display and prints a final summary.
func (r *BarRenderer) Finish() {
	e := r.lastEvent
	if r.isTTY && r.lines > 0 {
		r.clearLines()
	}

	if e.Error != nil && e.Stage != StageSkipped {
		fmt.Fprintf(r.out, "\n  Error: %v\n", e.Error)
		return
	}
	if e.Stage != StageComplete {
		return
	}

	fmt.Fprintf(r.out, "\n  %s (%s, success rate %.0f%%)\n", e.Message, formatElapsed(e.Elapsed), e.SuccessRate*100)
	if e.ReportFile != "" {
		fmt.Fprintf(r.out, "  Report: %s\n", e.ReportFile)
	}
	if e.LogFile != "" {
		fmt.Fprintf(r.out, "  Log: %s\n", e.LogFile)
	}
}

func (r *BarRenderer) renderTTY(e Event) {
	if r.lines > 0 {
		r.clearLines()
	}

	status := fmt.Sprintf("  %s %s", callLabel(e), e.Message)
	pct := e.Percent()
	meter := fmt.Sprintf("  %s %3d%%  %s", renderBar(pct, r.barWidth()), int(pct*100), formatElapsed(e.Elapsed))
	if e.Stage == StageAnalysis {
		meter += fmt.Sprintf("  score %.2f", e.Effectiveness)
	}

	fmt.Fprintf(r.out, "%s\n%s", status, meter)
	r.lines = 2
}

func (r *BarRenderer) renderPlain(e Event) {
	if e.Error != nil {
		fmt.Fprintf(r.out, "[%s] %s %s: %v\n", formatElapsed(e.Elapsed), callLabel(e), e.Message, e.Error)
		return
	}
	fmt.Fprintf(r.out, "[%s] %s %s\n", formatElapsed(e.Elapsed), callLabel(e), e.Message)
}

func (r *BarRenderer) clearLines() {
	fmt.Fprint(r.out, "\r\033[2K")
	for i := 1; i < r.lines; i++ {
		fmt.Fprint(r.out, "\033[A\033[2K")
	}
	fmt.Fprint(r.out, "\r")
	r.lines = 0
}

// barWidth leaves room for the percent, elapsed time and score readout.
func (r *BarRenderer) barWidth() int {
	return min(60, max(20, r.width-30))
}

func renderBar(pct float64, width int) string {
	filled := int(min(1, max(0, pct)) * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// formatElapsed formats a duration as M:SS.
func formatElapsed(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func callLabel(e Event) string {
	if e.Iterations == 0 || e.Stage == StageComplete || e.Stage == StageReport {
		return "[" + string(e.Stage) + "]"
	}
	return fmt.Sprintf("[call %d/%d]", e.Iteration, e.Iterations)
}
