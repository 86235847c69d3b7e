// Package progress renders the live progress of a run, either as periodic
// log lines or as a terminal progress bar.
package progress

import (
	"sync"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// LogReporter logs a line each time the completed count crosses another
// step percent of the target.
type LogReporter struct {
	mu     sync.Mutex
	step   int
	target int
	next   int
}

// NewLogReporter creates a LogReporter. A step outside 1..100 means 10.
func NewLogReporter(step int) *LogReporter {
	if step <= 0 || step > 100 {
		step = 10
	}
	return &LogReporter{step: step}
}

func (r *LogReporter) Start(target int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
	r.next = r.step
	logger.Infof("Progress: generating %d records.", target)
}

func (r *LogReporter) Update(c model.Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.target <= 0 {
		return
	}
	pct := c.Completed * 100 / r.target
	if pct < r.next {
		return
	}
	for r.next <= pct {
		r.next += r.step
	}
	logger.Infof("Progress: %d%% (%d/%d completed, %d failed, %d filtered, %d duplicate, %d in flight).",
		pct, c.Completed, r.target, c.Failed, c.Filtered, c.Duplicate, c.InFlight)
}

func (r *LogReporter) Finish(c model.Counters) {
	logger.Infof("Progress: finished with %d/%d completed after %d attempts.", c.Completed, c.Target, c.Total)
}

var _ port.ProgressReporter = (*LogReporter)(nil)
