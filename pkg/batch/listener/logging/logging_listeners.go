package logging

import (
	"context"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/datagen/pkg/batch/support/util/logger"
	"github.com/tigerroll/datagen/pkg/batch/support/util/serialization"
)

// --- Job Listener ---

// LoggingJobListener logs the start of a master job and a summary at its end.
type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, job *model.MasterJob) {
	logger.Infof("JobListener: BeforeJob - MasterJobID: %s, ProjectID: %s, Target: %d", job.ID, job.ProjectID, job.TargetCount)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, job *model.MasterJob, counters model.Counters) {
	logger.Infof("JobListener: AfterJob - MasterJobID: %s, Status: %s, Completed: %d, Attempted: %d, Failed: %d, Filtered: %d, Duplicate: %d",
		job.ID, job.Status, counters.Completed, counters.Total, counters.Failed, counters.Filtered, counters.Duplicate)
	if job.ErrorMessage != "" {
		logger.Warnf("JobListener: AfterJob - MasterJobID: %s ended with error: %s", job.ID, job.ErrorMessage)
	}
}

var _ port.JobListener = (*LoggingJobListener)(nil)

// --- Task Listener ---

// LoggingTaskListener logs every attempt at debug level. Values of maskedKeys are masked.
type LoggingTaskListener struct {
	maskedKeys []string
}

func NewLoggingTaskListener(maskedKeys []string) *LoggingTaskListener {
	return &LoggingTaskListener{maskedKeys: maskedKeys}
}

func (l *LoggingTaskListener) BeforeTask(ctx context.Context, masterJobID string, input model.InputRecord) {
	if !logger.Enabled(logger.LevelDebug) {
		return
	}
	logger.Debugf("TaskListener: BeforeTask - MasterJobID: %s, Input: %+v", masterJobID, serialization.MaskParameters(input, l.maskedKeys))
}

func (l *LoggingTaskListener) AfterTask(ctx context.Context, outcome port.TaskOutcome) {
	if outcome.Err != nil {
		logger.Debugf("TaskListener: AfterTask - MasterJobID: %s, Attempt: %d, Status: %s, Requeued: %t, Error: %v",
			outcome.MasterJobID, outcome.Attempt, outcome.Status, outcome.Requeued, outcome.Err)
		return
	}
	logger.Debugf("TaskListener: AfterTask - MasterJobID: %s, Attempt: %d, Status: %s, Requeued: %t, Items: %d, Duration: %s",
		outcome.MasterJobID, outcome.Attempt, outcome.Status, outcome.Requeued, len(outcome.Output), outcome.Duration)
}

var _ port.TaskListener = (*LoggingTaskListener)(nil)
