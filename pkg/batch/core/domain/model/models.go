// Package model defines the domain entities of the datagen engine: the master
// job that tracks a whole run, the execution jobs that record each attempt,
// the records each attempt produced and the request config a run can be
// resumed from.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a master job.
type JobStatus string

const (
	JobStatusPending             JobStatus = "PENDING"
	JobStatusRunning             JobStatus = "RUNNING"
	JobStatusCompleted           JobStatus = "COMPLETED"
	JobStatusCompletedWithErrors JobStatus = "COMPLETED_WITH_ERRORS"
	JobStatusFailed              JobStatus = "FAILED"
	JobStatusCancelled           JobStatus = "CANCELLED"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsFinished checks if the JobStatus represents a terminal state.
func (s JobStatus) IsFinished() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// RecordStatus is the terminal classification of one attempt.
type RecordStatus string

const (
	RecordStatusCompleted RecordStatus = "COMPLETED"
	RecordStatusDuplicate RecordStatus = "DUPLICATE"
	RecordStatusFiltered  RecordStatus = "FILTERED"
	RecordStatusFailed    RecordStatus = "FAILED"
)

// String returns the string representation of the RecordStatus.
func (s RecordStatus) String() string {
	return string(s)
}

// Precedence ranks hook verdicts. When several completion hooks disagree the
// highest rank wins: duplicate over filtered over completed.
func (s RecordStatus) Precedence() int {
	switch s {
	case RecordStatusDuplicate:
		return 2
	case RecordStatusFiltered:
		return 1
	default:
		return 0
	}
}

// Counters is a point-in-time snapshot of a run's progress.
// Completed + Duplicate + Filtered + Failed always equals Total.
type Counters struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Duplicate int `json:"duplicate"`
	Filtered  int `json:"filtered"`
	Failed    int `json:"failed"`
	InFlight  int `json:"in_flight"`
	Queued    int `json:"queued"`
	Target    int `json:"target"`
}

// MasterJob tracks one whole run.
type MasterJob struct {
	ID               string
	ProjectID        string
	Status           JobStatus
	RequestConfigRef string
	TargetCount      int
	CompletedCount   int
	FilteredCount    int
	DuplicateCount   int
	FailedCount      int
	CreateTime       time.Time
	StartTime        *time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	ErrorMessage     string
}

// NewMasterJob creates a PENDING master job.
func NewMasterJob(projectID string, targetCount int) *MasterJob {
	now := time.Now()
	return &MasterJob{
		ID:          NewID(),
		ProjectID:   projectID,
		Status:      JobStatusPending,
		TargetCount: targetCount,
		CreateTime:  now,
		LastUpdated: now,
	}
}

// MarkAsStarted moves the job to RUNNING.
func (m *MasterJob) MarkAsStarted() {
	now := time.Now()
	m.Status = JobStatusRunning
	m.StartTime = &now
	m.LastUpdated = now
}

// MarkAsFinished sets the terminal status and copies the final counters.
func (m *MasterJob) MarkAsFinished(status JobStatus, c Counters, err error) {
	now := time.Now()
	m.Status = status
	m.EndTime = &now
	m.LastUpdated = now
	m.ApplyCounters(c)
	if err != nil {
		m.ErrorMessage = err.Error()
	}
}

// ApplyCounters copies the classification counts into the job.
func (m *MasterJob) ApplyCounters(c Counters) {
	m.CompletedCount = c.Completed
	m.FilteredCount = c.Filtered
	m.DuplicateCount = c.Duplicate
	m.FailedCount = c.Failed
}

// Attempted returns the number of terminal attempts recorded on the job.
func (m *MasterJob) Attempted() int {
	return m.CompletedCount + m.FilteredCount + m.DuplicateCount + m.FailedCount
}

// ExecutionJob records a single attempt of one input record.
type ExecutionJob struct {
	ID             string
	MasterJobID    string
	Status         RecordStatus
	RunConfig      InputRecord
	RunConfigHash  string
	CompletedCount int
	FilteredCount  int
	DuplicateCount int
	FailedCount    int
	CreateTime     time.Time
	StartTime      time.Time
	EndTime        *time.Time
	ErrorMessage   string
}

// NewExecutionJob creates an execution job for one attempt of input.
func NewExecutionJob(masterJobID string, input InputRecord, inputHash string) *ExecutionJob {
	now := time.Now()
	return &ExecutionJob{
		ID:            NewID(),
		MasterJobID:   masterJobID,
		RunConfig:     input,
		RunConfigHash: inputHash,
		CreateTime:    now,
		StartTime:     now,
	}
}

// Finish stamps the attempt's classification and end time.
func (e *ExecutionJob) Finish(status RecordStatus, records int, err error) {
	now := time.Now()
	e.Status = status
	e.EndTime = &now
	switch status {
	case RecordStatusCompleted:
		e.CompletedCount = records
	case RecordStatusFiltered:
		e.FilteredCount = records
	case RecordStatusDuplicate:
		e.DuplicateCount = records
	case RecordStatusFailed:
		e.FailedCount = 1
	}
	if err != nil {
		e.ErrorMessage = err.Error()
	}
}

// Record is the metadata of one output item (or of one failed attempt).
// OutputRef points at the payload in the blob store and is empty for failures.
type Record struct {
	ID          string
	JobID       string
	MasterJobID string
	Status      RecordStatus
	// Index is the position of the item in its attempt's output.
	Index        int
	OutputRef    string
	CreateTime   time.Time
	EndTime      time.Time
	ErrorMessage string
}

// RequestConfig is everything needed to resume a run.
type RequestConfig struct {
	ProjectID           string        `json:"project_id"`
	Inputs              []InputRecord `json:"inputs"`
	TargetCount         int           `json:"target_count"`
	MaxConcurrency      int           `json:"max_concurrency"`
	TaskTimeout         time.Duration `json:"task_timeout"`
	MaxAttemptsPerInput int           `json:"max_attempts_per_input"`
}

// Marshal encodes the request config as JSON.
func (rc *RequestConfig) Marshal() ([]byte, error) {
	return json.Marshal(rc)
}

// UnmarshalRequestConfig decodes a request config written by Marshal.
// Input values keep their integer types (see InputRecord.UnmarshalJSON).
func UnmarshalRequestConfig(data []byte) (*RequestConfig, error) {
	var rc RequestConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request config: %w", err)
	}
	return &rc, nil
}

// NewID returns a new random identifier.
func NewID() string {
	return uuid.New().String()
}

// Value implements driver.Valuer so an InputRecord can be stored as a JSON column.
func (r InputRecord) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]interface{}(r))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSON columns.
func (r *InputRecord) Scan(value interface{}) error {
	if value == nil {
		*r = InputRecord{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for InputRecord: %T", value)
	}
	if len(b) == 0 {
		*r = InputRecord{}
		return nil
	}
	var m InputRecord
	if err := m.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("failed to unmarshal InputRecord JSON: %w", err)
	}
	if m == nil {
		m = InputRecord{}
	}
	*r = m
	return nil
}
