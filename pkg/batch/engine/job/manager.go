// Package job implements the job manager: the scheduling loop that drives
// attempts of a work function over a queue of input records until a target
// number of records has completed.
package job

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/datagen/pkg/batch/core/metrics"
	"github.com/tigerroll/datagen/pkg/batch/core/state"
	"github.com/tigerroll/datagen/pkg/batch/engine/retry"
	"github.com/tigerroll/datagen/pkg/batch/engine/task"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

const module = "job"

// DefaultPollInterval is how long the scheduler sleeps while the queue is empty
// and attempts are still in flight.
const DefaultPollInterval = 10 * time.Millisecond

// Mode selects how a run treats persistence and requeueing.
type Mode int

const (
	// ModeNormal persists every attempt and requeues non-completed inputs.
	ModeNormal Mode = iota
	// ModeResume replays completed outputs of a previous run before scheduling.
	ModeResume
	// ModeDryRun runs a single attempt without persistence or requeueing.
	ModeDryRun
)

// String returns the lower-case name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeResume:
		return "resume"
	case ModeDryRun:
		return "dry-run"
	default:
		return "normal"
	}
}

// Config is the immutable configuration of a Manager.
type Config struct {
	// MaxConcurrency bounds the number of attempts in flight. Must be positive.
	MaxConcurrency int
	// TargetCount is the number of completed records to reach. 0 means the queue length.
	TargetCount int
	// TaskTimeout bounds a single call of the work function. 0 disables it.
	TaskTimeout time.Duration
	// PollInterval is the scheduler's sleep while the queue is empty. 0 means DefaultPollInterval.
	PollInterval time.Duration

	CompletionHooks []port.CompletionHook
	ErrorHooks      []port.ErrorHook
	// State is handed to every hook. A fresh state is used when nil.
	State *state.SharedState
	// Storage receives every attempt. Persistence is skipped when nil.
	Storage repository.Storage
	// RetryPolicy decides requeueing. retry.Unlimited() is used when nil.
	RetryPolicy retry.Policy

	Tracer        metrics.Tracer
	TaskListeners []port.TaskListener
	Progress      port.ProgressReporter
	// MaskedKeys lists input keys whose values are masked in logs.
	MaskedKeys []string
}

// Result is the outcome of a run.
type Result struct {
	// Outputs holds the output of every completed record in completion order.
	// Replayed outputs of a resumed run come first.
	Outputs [][]interface{}
	// Counters holds the final counters.
	Counters model.Counters
	// Replayed is the number of completed records restored from storage.
	Replayed int
	// Exhausted is the number of inputs dropped by the retry policy.
	Exhausted int
}

// Flatten concatenates the outputs of all completed records.
func (r *Result) Flatten() []interface{} {
	var out []interface{}
	for _, o := range r.Outputs {
		out = append(out, o...)
	}
	return out
}

// Manager schedules attempts of a work function. A Manager may be used for
// several runs, one at a time or concurrently; each run keeps its own state.
type Manager struct {
	cfg    Config
	work   port.WorkFunc
	runner *task.Runner
}

// NewManager validates cfg and creates a Manager.
func NewManager(work port.WorkFunc, cfg Config) (*Manager, error) {
	if work == nil {
		return nil, exception.NewConfigurationError(module, "work function must not be nil")
	}
	if cfg.MaxConcurrency <= 0 {
		return nil, exception.NewConfigurationError(module, "max concurrency must be positive, got %d", cfg.MaxConcurrency)
	}
	if cfg.TargetCount < 0 {
		return nil, exception.NewConfigurationError(module, "target count must not be negative, got %d", cfg.TargetCount)
	}
	if cfg.TaskTimeout < 0 {
		return nil, exception.NewConfigurationError(module, "task timeout must not be negative, got %s", cfg.TaskTimeout)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.State == nil {
		cfg.State = state.New(nil)
	}
	if cfg.RetryPolicy == nil {
		cfg.RetryPolicy = retry.Unlimited()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = metrics.NewNoOpTracer()
	}
	return &Manager{cfg: cfg, work: work, runner: task.NewRunner()}, nil
}

// Config returns the manager's configuration after defaults were applied.
func (m *Manager) Config() Config {
	return m.cfg
}

// Run drives queue until the target is reached, the queue is exhausted, ctx is
// cancelled or the storage fails. Attempts in flight are always drained
// before Run returns.
//
// Task errors never make Run fail. The returned error is a storage error or
// ctx.Err(); in both cases the partial Result is returned as well.
func (m *Manager) Run(ctx context.Context, masterJobID string, queue []model.InputRecord) (*Result, error) {
	r, err := m.newRun(masterJobID, ModeNormal, m.target(len(queue)))
	if err != nil {
		return nil, err
	}
	if err := r.enqueue(queue); err != nil {
		return nil, err
	}
	return r.execute(ctx)
}

func (m *Manager) target(queueLen int) int {
	if m.cfg.TargetCount > 0 {
		return m.cfg.TargetCount
	}
	return queueLen
}

type queued struct {
	input   model.InputRecord
	hash    string
	attempt int
}

// run holds the mutable state of one Run, Resume or DryRun.
type run struct {
	m           *Manager
	masterJobID string
	mode        Mode
	target      int
	sem         *semaphore.Weighted

	mu        sync.Mutex
	queue     []queued
	counters  model.Counters
	outputs   [][]interface{}
	inFlight  int
	delayed   int
	replayed  int
	exhausted int
	storeErr  error
	capture   *dryRunCapture
	progress  port.ProgressReporter

	wg   sync.WaitGroup
	wake chan struct{}
	stop chan struct{}
}

func (m *Manager) newRun(masterJobID string, mode Mode, target int) (*run, error) {
	if mode != ModeDryRun && masterJobID == "" && m.cfg.Storage != nil {
		return nil, exception.NewConfigurationError(module, "master job ID is required when storage is configured")
	}
	var progress port.ProgressReporter
	if m.cfg.Progress != nil {
		progress = NewOrderedProgress(m.cfg.Progress)
	}
	return &run{
		m:           m,
		progress:    progress,
		masterJobID: masterJobID,
		mode:        mode,
		target:      target,
		sem:         semaphore.NewWeighted(int64(m.cfg.MaxConcurrency)),
		counters:    model.Counters{Target: target},
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}, nil
}

func (r *run) enqueue(inputs []model.InputRecord) error {
	items := make([]queued, 0, len(inputs))
	for _, in := range inputs {
		h, err := in.Hash()
		if err != nil {
			return exception.NewConfigurationError(module, "input record cannot be hashed: %v", err)
		}
		items = append(items, queued{input: in, hash: h})
	}
	r.mu.Lock()
	r.queue = append(r.queue, items...)
	r.counters.Queued = len(r.queue)
	r.mu.Unlock()
	return nil
}

func (r *run) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *run) persisting() bool {
	return r.mode != ModeDryRun && r.m.cfg.Storage != nil
}

// execute runs the scheduling loop and drains in-flight attempts.
func (r *run) execute(ctx context.Context) (*Result, error) {
	if p := r.progress; p != nil {
		p.Start(r.target)
	}
	logger.Debugf("Master job %s: scheduling %d queued inputs towards target %d (mode=%s, concurrency=%d).",
		r.masterJobID, len(r.queue), r.target, r.mode, r.m.cfg.MaxConcurrency)

	r.loop(ctx)

	close(r.stop)
	r.wg.Wait()

	r.mu.Lock()
	res := &Result{
		Outputs:   r.outputs,
		Counters:  r.snapshotLocked(),
		Replayed:  r.replayed,
		Exhausted: r.exhausted,
	}
	storeErr := r.storeErr
	r.mu.Unlock()

	if p := r.progress; p != nil {
		p.Finish(res.Counters)
	}
	if storeErr != nil {
		return res, storeErr
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// loop is the single coordinator. It admits an attempt only while
// completed + inFlight < target, so completed never overshoots the target.
func (r *run) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		r.mu.Lock()
		if r.counters.Completed >= r.target || r.storeErr != nil {
			r.mu.Unlock()
			return
		}
		if len(r.queue) == 0 && r.inFlight == 0 && r.delayed == 0 {
			r.mu.Unlock()
			logger.Debugf("Master job %s: queue exhausted with %d/%d completed.", r.masterJobID, r.counters.Completed, r.target)
			return
		}
		admit := len(r.queue) > 0 && r.counters.Completed+r.inFlight < r.target
		r.mu.Unlock()

		if !admit {
			r.sleep(ctx)
			continue
		}

		if err := r.sem.Acquire(ctx, 1); err != nil {
			return
		}

		r.mu.Lock()
		if len(r.queue) == 0 || r.counters.Completed+r.inFlight >= r.target || r.storeErr != nil {
			r.mu.Unlock()
			r.sem.Release(1)
			continue
		}
		item := r.queue[0]
		r.queue = r.queue[1:]
		r.inFlight++
		r.counters.Queued = len(r.queue)
		r.counters.InFlight = r.inFlight
		r.wg.Add(1)
		r.mu.Unlock()

		go r.attempt(ctx, item)
	}
}

func (r *run) sleep(ctx context.Context) {
	t := time.NewTimer(r.m.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-r.wake:
	case <-t.C:
	}
}

func (r *run) snapshotLocked() model.Counters {
	c := r.counters
	c.InFlight = r.inFlight
	c.Queued = len(r.queue)
	c.Target = r.target
	return c
}

// requeueLocked puts item back on the queue, immediately or after delay.
func (r *run) requeueLocked(item queued, delay time.Duration) {
	if delay <= 0 {
		r.queue = append(r.queue, item)
		return
	}
	r.delayed++
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-r.stop:
		}
		r.mu.Lock()
		r.delayed--
		r.queue = append(r.queue, item)
		r.counters.Queued = len(r.queue)
		r.mu.Unlock()
		r.notify()
	}()
}

// latchStorageError records the first storage error; it stops scheduling.
func (r *run) latchStorageError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.storeErr == nil {
		r.storeErr = err
		logger.Errorf("Master job %s: storage failure, stopping: %v", r.masterJobID, err)
	}
}
