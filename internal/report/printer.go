// Package report prints the user-facing progress of a debugging session.
//
// Verdict lines follow each tested configuration:
//
//	3c6f...e1 --( run )-> PASS(+3->5)
//	3c6f...e1 --( run )-> FAIL(0)
//	3c6f...e1 --(cache) -> FAIL
//	3c6f...e1 --(cache)-> PASS(5)
//
// Quiet mode drops verdict and progress lines; found configurations and the
// final statistics are always printed. Colors are used only when the output
// is a terminal.
package report

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/aalhour/ddstoch/internal/cache"
	"github.com/aalhour/ddstoch/internal/minimize"
)

var (
	colorPass  = lipgloss.Color("#2CD7C7")
	colorFail  = lipgloss.Color("#E74C3C")
	colorFound = lipgloss.Color("#F4D03F")
	colorMuted = lipgloss.Color("#2C4A54")
)

type styles struct {
	pass  lipgloss.Style
	fail  lipgloss.Style
	found lipgloss.Style
	muted lipgloss.Style
}

// Printer writes progress lines. It is safe for concurrent use.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	quiet  bool
	color  bool
	styles styles
}

// New creates a Printer writing to w. Colors are enabled when w is a terminal.
func New(w io.Writer, quiet bool) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return newPrinter(w, quiet, color)
}

// NewPlain creates a Printer that never uses colors.
func NewPlain(w io.Writer, quiet bool) *Printer {
	return newPrinter(w, quiet, false)
}

func newPrinter(w io.Writer, quiet, color bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:     w,
		quiet: quiet,
		color: color,
		styles: styles{
			pass:  r.NewStyle().Foreground(colorPass),
			fail:  r.NewStyle().Foreground(colorFail).Bold(true),
			found: r.NewStyle().Foreground(colorFound).Bold(true),
			muted: r.NewStyle().Foreground(colorMuted),
		},
	}
}

// Quiet reports whether verdict and progress lines are suppressed.
func (p *Printer) Quiet() bool {
	return p.quiet
}

func (p *Printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *Printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, line)
}

// Verdict prints the verdict line of one tested configuration.
// It has the signature of cache.Listener.
func (p *Printer) Verdict(v cache.Verdict) {
	if p.quiet {
		return
	}
	var line string
	switch {
	case v.Cached && v.Outcome == minimize.Fail:
		line = v.Digest + p.paint(p.styles.muted, " --(cache) -> ") + p.paint(p.styles.fail, "FAIL")
	case v.Cached:
		line = v.Digest + p.paint(p.styles.muted, " --(cache)-> ") + p.paint(p.styles.pass, fmt.Sprintf("PASS(%d)", v.NbRun))
	case v.Outcome == minimize.Fail:
		line = v.Digest + p.paint(p.styles.muted, " --( run )-> ") + p.paint(p.styles.fail, fmt.Sprintf("FAIL(%d)", v.FailedIndex))
	default:
		line = v.Digest + p.paint(p.styles.muted, " --( run )-> ") +
			p.paint(p.styles.pass, fmt.Sprintf("PASS(+%d->%d)", v.Executed, v.NbRun))
	}
	p.println(line)
}

// Progress prints a progress line. It has the signature of
// minimize.ProgressFunc.
func (p *Printer) Progress(title string, remaining int, candidate string) {
	if p.quiet {
		return
	}
	p.println(fmt.Sprintf("%s: %d deltas left: %s", title, remaining, candidate))
}

// Found announces a reported configuration, e.g. "ddmin0 (src/a.c:12):".
func (p *Printer) Found(name, candidate string) {
	p.println(p.paint(p.styles.found, name) + " (" + candidate + "):")
}

// Message prints a plain line.
func (p *Printer) Message(format string, args ...any) {
	p.println(fmt.Sprintf(format, args...))
}

// Elapsed prints the session duration as days, hours, minutes and seconds.
func (p *Printer) Elapsed(d time.Duration) {
	p.println("\n" + FormatElapsed(d))
}

// FormatElapsed renders d as "Elapsed Time: 0d 1h 2min 3s".
func FormatElapsed(d time.Duration) string {
	total := int64(d / time.Second)
	s := total % 60
	m := (total / 60) % 60
	h := (total / 3600) % 24
	days := total / 86400
	return fmt.Sprintf("Elapsed Time: %dd %dh %dmin %ds", days, h, m, s)
}

// RunCount prints how many run scripts were executed by this session and
// how many exist in the working directory.
func (p *Printer) RunCount(workdir string, fresh, total int) {
	p.println(fmt.Sprintf("%s search : %d run (with cache included: %d)", workdir, fresh, total))
}
