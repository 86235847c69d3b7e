package job

import (
	"context"
	"time"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
	"github.com/tigerroll/datagen/pkg/batch/support/util/serialization"
)

// Resume continues the master job masterJobID from its persisted request config.
func (m *Manager) Resume(ctx context.Context, masterJobID string) (*Result, error) {
	if m.cfg.Storage == nil {
		return nil, exception.NewConfigurationError(module, "resume requires a storage backend")
	}
	master, err := m.cfg.Storage.GetMasterJob(ctx, masterJobID)
	if err != nil {
		return nil, wrapStorage("failed to load master job", err)
	}
	rc, err := m.cfg.Storage.GetRequestConfig(ctx, master.RequestConfigRef)
	if err != nil {
		return nil, wrapStorage("failed to load request config", err)
	}
	return m.ResumeFrom(ctx, masterJobID, rc)
}

// ResumeFrom continues masterJobID using an already loaded request config.
//
// For every distinct input it looks up the execution jobs that completed
// under the same master job and input hash, and replays their stored outputs
// without re-executing or re-writing them. Replayed outputs are handed to
// every completion hook that implements port.ReplayHook. At most as many jobs are replayed
// per input as the input occurs in the request, and at most target overall.
// Only the inputs that were not replayed are scheduled.
func (m *Manager) ResumeFrom(ctx context.Context, masterJobID string, rc *model.RequestConfig) (*Result, error) {
	if m.cfg.Storage == nil {
		return nil, exception.NewConfigurationError(module, "resume requires a storage backend")
	}
	target := m.cfg.TargetCount
	if target == 0 {
		target = rc.TargetCount
	}
	if target == 0 {
		target = len(rc.Inputs)
	}
	r, err := m.newRun(masterJobID, ModeResume, target)
	if err != nil {
		return nil, err
	}

	hashes := make([]string, len(rc.Inputs))
	multiplicity := map[string]int{}
	var order []string
	for i, in := range rc.Inputs {
		h, err := in.Hash()
		if err != nil {
			return nil, exception.NewConfigurationError(module, "stored input record cannot be hashed: %v", err)
		}
		hashes[i] = h
		if multiplicity[h] == 0 {
			order = append(order, h)
		}
		multiplicity[h]++
	}

	replayedByHash := map[string]int{}
	for _, h := range order {
		if len(r.outputs) >= target {
			break
		}
		jobs, err := m.cfg.Storage.ListExecutionJobsByMasterIDAndConfigHash(ctx, masterJobID, h, model.RecordStatusCompleted)
		if err != nil {
			return nil, wrapStorage("failed to list execution jobs", err)
		}
		for _, job := range jobs {
			if replayedByHash[h] >= multiplicity[h] || len(r.outputs) >= target {
				break
			}
			output, err := m.loadOutput(ctx, masterJobID, job.ID)
			if err != nil {
				return nil, err
			}
			r.outputs = append(r.outputs, output)
			replayedByHash[h]++
			m.replayToHooks(ctx, output)
		}
	}
	r.replayed = len(r.outputs)
	r.counters.Completed = r.replayed
	r.counters.Total = r.replayed

	var pending []model.InputRecord
	for i, in := range rc.Inputs {
		h := hashes[i]
		if replayedByHash[h] > 0 {
			replayedByHash[h]--
			continue
		}
		pending = append(pending, in)
	}
	if err := r.enqueue(pending); err != nil {
		return nil, err
	}
	logger.Infof("Master job %s: resuming with %d replayed records and %d inputs to schedule (target %d).",
		masterJobID, r.replayed, len(pending), target)

	return r.execute(ctx)
}

func (m *Manager) replayToHooks(ctx context.Context, output []interface{}) {
	for _, h := range m.cfg.CompletionHooks {
		if rh, ok := h.(port.ReplayHook); ok {
			rh.OnRecordReplay(ctx, output, m.cfg.State)
		}
	}
}

// loadOutput rebuilds the output of a completed execution job from its records.
func (m *Manager) loadOutput(ctx context.Context, masterJobID, jobID string) ([]interface{}, error) {
	records, err := m.cfg.Storage.ListRecordMetadata(ctx, masterJobID, jobID)
	if err != nil {
		return nil, wrapStorage("failed to list record metadata", err)
	}
	output := make([]interface{}, 0, len(records))
	for _, rec := range records {
		if rec.Status != model.RecordStatusCompleted || rec.OutputRef == "" {
			continue
		}
		data, err := m.cfg.Storage.GetRecordData(ctx, rec.OutputRef)
		if err != nil {
			return nil, wrapStorage("failed to load record data", err)
		}
		payload, err := serialization.UnmarshalPayload(data)
		if err != nil {
			return nil, wrapStorage("failed to decode record data", err)
		}
		output = append(output, payload)
	}
	return output, nil
}

// DryRunResult is the outcome of a single unpersisted attempt.
type DryRunResult struct {
	Input    model.InputRecord
	Output   []interface{}
	Status   model.RecordStatus
	Err      error
	Duration time.Duration
}

// DryRun runs exactly one attempt of input through the normal pipeline
// (work function, hooks, listeners) without persisting or requeueing it.
// The task error, if any, is reported in the result, not returned.
func (m *Manager) DryRun(ctx context.Context, input model.InputRecord) (*DryRunResult, error) {
	r, err := m.newRun("", ModeDryRun, 1)
	if err != nil {
		return nil, err
	}
	h, err := input.Hash()
	if err != nil {
		return nil, exception.NewConfigurationError(module, "input record cannot be hashed: %v", err)
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.inFlight++
	r.mu.Unlock()
	r.wg.Add(1)

	start := time.Now()
	capture := &dryRunCapture{}
	r.capture = capture
	r.attempt(ctx, queued{input: input, hash: h})
	close(r.stop)
	r.wg.Wait()

	return &DryRunResult{
		Input:    input,
		Output:   capture.output,
		Status:   capture.status,
		Err:      capture.err,
		Duration: time.Since(start),
	}, nil
}

// dryRunCapture holds the outcome of the single dry-run attempt.
type dryRunCapture struct {
	output []interface{}
	status model.RecordStatus
	err    error
}
