package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
)

var (
	barMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	barErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	barOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

// DefaultRefreshInterval throttles redraws of the bar.
const DefaultRefreshInterval = 100 * time.Millisecond

// BarReporter redraws a single progress bar line on out.
type BarReporter struct {
	mu       sync.Mutex
	out      io.Writer
	bar      progress.Model
	refresh  time.Duration
	target   int
	lastDraw time.Time
}

// NewBarReporter creates a BarReporter of the given bar width.
func NewBarReporter(out io.Writer, width int) *BarReporter {
	if width <= 0 {
		width = 40
	}
	return &BarReporter{
		out:     out,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(width)),
		refresh: DefaultRefreshInterval,
	}
}

// WithRefreshInterval changes the redraw throttle. 0 redraws on every update.
func (r *BarReporter) WithRefreshInterval(d time.Duration) *BarReporter {
	r.refresh = d
	return r
}

func (r *BarReporter) Start(target int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
	r.draw(model.Counters{Target: target})
}

func (r *BarReporter) Update(c model.Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refresh > 0 && time.Since(r.lastDraw) < r.refresh {
		return
	}
	r.draw(c)
}

func (r *BarReporter) Finish(c model.Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw(c)
	fmt.Fprintln(r.out)
}

// Render returns the line drawn for c.
func (r *BarReporter) Render(c model.Counters) string {
	target := c.Target
	if target <= 0 {
		target = r.target
	}
	pct := 0.0
	if target > 0 {
		pct = float64(c.Completed) / float64(target)
	}
	if pct > 1 {
		pct = 1
	}
	counts := barOKStyle.Render(fmt.Sprintf("%d/%d", c.Completed, target))
	line := r.bar.ViewAs(pct) + " " + counts
	if c.Failed > 0 {
		line += " " + barErrorStyle.Render(fmt.Sprintf("%d failed", c.Failed))
	}
	return line + " " + barMutedStyle.Render(fmt.Sprintf("filtered %d, duplicate %d, in flight %d", c.Filtered, c.Duplicate, c.InFlight))
}

func (r *BarReporter) draw(c model.Counters) {
	fmt.Fprintf(r.out, "\r%s", r.Render(c))
	r.lastDraw = time.Now()
}

var _ port.ProgressReporter = (*BarReporter)(nil)
