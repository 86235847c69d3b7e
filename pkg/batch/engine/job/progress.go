package job

import (
	"sync"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
)

// NewOrderedProgress wraps p so that Update never delivers a snapshot older
// than one already delivered. Attempts take their snapshot under the run lock
// but report it after releasing it, so snapshots can arrive out of order;
// Total grows by one per attempt and orders them.
func NewOrderedProgress(p port.ProgressReporter) port.ProgressReporter {
	return &orderedProgress{next: p, last: -1}
}

type orderedProgress struct {
	next port.ProgressReporter

	mu   sync.Mutex
	last int
}

func (o *orderedProgress) Start(target int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = -1
	o.next.Start(target)
}

func (o *orderedProgress) Update(counters model.Counters) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if counters.Total < o.last {
		return
	}
	o.last = counters.Total
	o.next.Update(counters)
}

func (o *orderedProgress) Finish(counters model.Counters) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = counters.Total
	o.next.Finish(counters)
}
