package sql

import (
	"github.com/tigerroll/datagen/pkg/batch/core/domain/model"
)

// --- Mapper functions ---

func fromDomainMasterJob(m *model.MasterJob) *MasterJobEntity {
	if m == nil {
		return nil
	}
	return &MasterJobEntity{
		ID:               m.ID,
		ProjectID:        m.ProjectID,
		Status:           m.Status,
		RequestConfigRef: m.RequestConfigRef,
		TargetCount:      m.TargetCount,
		CompletedCount:   m.CompletedCount,
		FilteredCount:    m.FilteredCount,
		DuplicateCount:   m.DuplicateCount,
		FailedCount:      m.FailedCount,
		CreateTime:       m.CreateTime,
		StartTime:        m.StartTime,
		EndTime:          m.EndTime,
		LastUpdated:      m.LastUpdated,
		ErrorMessage:     m.ErrorMessage,
	}
}

func toDomainMasterJob(e *MasterJobEntity) *model.MasterJob {
	if e == nil {
		return nil
	}
	return &model.MasterJob{
		ID:               e.ID,
		ProjectID:        e.ProjectID,
		Status:           e.Status,
		RequestConfigRef: e.RequestConfigRef,
		TargetCount:      e.TargetCount,
		CompletedCount:   e.CompletedCount,
		FilteredCount:    e.FilteredCount,
		DuplicateCount:   e.DuplicateCount,
		FailedCount:      e.FailedCount,
		CreateTime:       e.CreateTime,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		LastUpdated:      e.LastUpdated,
		ErrorMessage:     e.ErrorMessage,
	}
}

func fromDomainExecutionJob(j *model.ExecutionJob) *ExecutionJobEntity {
	if j == nil {
		return nil
	}
	return &ExecutionJobEntity{
		ID:             j.ID,
		MasterJobID:    j.MasterJobID,
		Status:         j.Status,
		RunConfig:      j.RunConfig,
		RunConfigHash:  j.RunConfigHash,
		CompletedCount: j.CompletedCount,
		FilteredCount:  j.FilteredCount,
		DuplicateCount: j.DuplicateCount,
		FailedCount:    j.FailedCount,
		CreateTime:     j.CreateTime,
		StartTime:      j.StartTime,
		EndTime:        j.EndTime,
		ErrorMessage:   j.ErrorMessage,
	}
}

func toDomainExecutionJob(e *ExecutionJobEntity) *model.ExecutionJob {
	if e == nil {
		return nil
	}
	return &model.ExecutionJob{
		ID:             e.ID,
		MasterJobID:    e.MasterJobID,
		Status:         e.Status,
		RunConfig:      e.RunConfig,
		RunConfigHash:  e.RunConfigHash,
		CompletedCount: e.CompletedCount,
		FilteredCount:  e.FilteredCount,
		DuplicateCount: e.DuplicateCount,
		FailedCount:    e.FailedCount,
		CreateTime:     e.CreateTime,
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
		ErrorMessage:   e.ErrorMessage,
	}
}

func fromDomainRecord(r *model.Record) *RecordEntity {
	if r == nil {
		return nil
	}
	return &RecordEntity{
		ID:           r.ID,
		JobID:        r.JobID,
		MasterJobID:  r.MasterJobID,
		Status:       r.Status,
		ItemIndex:    r.Index,
		OutputRef:    r.OutputRef,
		CreateTime:   r.CreateTime,
		EndTime:      r.EndTime,
		ErrorMessage: r.ErrorMessage,
	}
}

func toDomainRecord(e *RecordEntity) *model.Record {
	if e == nil {
		return nil
	}
	return &model.Record{
		ID:           e.ID,
		JobID:        e.JobID,
		MasterJobID:  e.MasterJobID,
		Status:       e.Status,
		Index:        e.ItemIndex,
		OutputRef:    e.OutputRef,
		CreateTime:   e.CreateTime,
		EndTime:      e.EndTime,
		ErrorMessage: e.ErrorMessage,
	}
}
