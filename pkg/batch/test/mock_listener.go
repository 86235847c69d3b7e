package test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/metrics"
)

// MockTaskListener is a testify mock of port.TaskListener.
type MockTaskListener struct {
	mock.Mock
}

func (m *MockTaskListener) BeforeTask(ctx context.Context, masterJobID string, input model.InputRecord) {
	m.Called(ctx, masterJobID, input)
}

func (m *MockTaskListener) AfterTask(ctx context.Context, outcome port.TaskOutcome) {
	m.Called(ctx, outcome)
}

// MockJobListener is a testify mock of port.JobListener.
type MockJobListener struct {
	mock.Mock
}

func (m *MockJobListener) BeforeJob(ctx context.Context, job *model.MasterJob) {
	m.Called(ctx, job)
}

func (m *MockJobListener) AfterJob(ctx context.Context, job *model.MasterJob, counters model.Counters) {
	m.Called(ctx, job, counters)
}

// MockProgressReporter is a testify mock of port.ProgressReporter.
type MockProgressReporter struct {
	mock.Mock
}

func (m *MockProgressReporter) Start(target int) {
	m.Called(target)
}

func (m *MockProgressReporter) Update(counters model.Counters) {
	m.Called(counters)
}

func (m *MockProgressReporter) Finish(counters model.Counters) {
	m.Called(counters)
}

// MockMetricRecorder is a testify mock of metrics.MetricRecorder.
type MockMetricRecorder struct {
	mock.Mock
}

func (m *MockMetricRecorder) RecordJobStart(ctx context.Context, job *model.MasterJob) {
	m.Called(ctx, job)
}

func (m *MockMetricRecorder) RecordJobEnd(ctx context.Context, job *model.MasterJob) {
	m.Called(ctx, job)
}

func (m *MockMetricRecorder) RecordTaskStart(ctx context.Context, masterJobID string) {
	m.Called(ctx, masterJobID)
}

func (m *MockMetricRecorder) RecordTaskOutcome(ctx context.Context, masterJobID string, status model.RecordStatus, duration time.Duration) {
	m.Called(ctx, masterJobID, status, duration)
}

func (m *MockMetricRecorder) RecordRequeue(ctx context.Context, masterJobID string, reason model.RecordStatus) {
	m.Called(ctx, masterJobID, reason)
}

func (m *MockMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	m.Called(ctx, name, duration, tags)
}

var (
	_ metrics.MetricRecorder = (*MockMetricRecorder)(nil)
	_ port.TaskListener      = (*MockTaskListener)(nil)
	_ port.JobListener       = (*MockJobListener)(nil)
	_ port.ProgressReporter  = (*MockProgressReporter)(nil)
)
