package sql

import (
	"time"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
)

// MasterJobEntity is a schema model used for persistence.
type MasterJobEntity struct {
	ID               string          `gorm:"primaryKey;size:36"`
	ProjectID        string          `gorm:"size:255;index:idx_datagen_master_job_project"`
	Status           model.JobStatus `gorm:"size:32"`
	RequestConfigRef string          `gorm:"size:512"`
	TargetCount      int
	CompletedCount   int
	FilteredCount    int
	DuplicateCount   int
	FailedCount      int
	CreateTime       time.Time `gorm:"index:idx_datagen_master_job_project"`
	StartTime        *time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	ErrorMessage     string `gorm:"type:text"`
}

func (MasterJobEntity) TableName() string {
	return "datagen_master_job"
}

// ExecutionJobEntity is a schema model used for persistence.
type ExecutionJobEntity struct {
	ID             string             `gorm:"primaryKey;size:36"`
	MasterJobID    string             `gorm:"size:36;index:idx_datagen_execution_job_hash,priority:1;index:idx_datagen_execution_job_master"`
	Status         model.RecordStatus `gorm:"size:32"`
	RunConfig      model.InputRecord  `gorm:"type:text"`
	RunConfigHash  string             `gorm:"size:64;index:idx_datagen_execution_job_hash,priority:2"`
	CompletedCount int
	FilteredCount  int
	DuplicateCount int
	FailedCount    int
	CreateTime     time.Time
	StartTime      time.Time
	EndTime        *time.Time
	ErrorMessage   string `gorm:"type:text"`
}

func (ExecutionJobEntity) TableName() string {
	return "datagen_execution_job"
}

// RecordEntity is a schema model used for persistence.
type RecordEntity struct {
	ID           string             `gorm:"primaryKey;size:36"`
	JobID        string             `gorm:"size:36;index:idx_datagen_record_job"`
	MasterJobID  string             `gorm:"size:36;index:idx_datagen_record_master"`
	Status       model.RecordStatus `gorm:"size:32"`
	ItemIndex    int                `gorm:"column:item_index"`
	OutputRef    string             `gorm:"size:512"`
	CreateTime   time.Time
	EndTime      time.Time
	ErrorMessage string `gorm:"type:text"`
}

func (RecordEntity) TableName() string {
	return "datagen_record"
}

// Entities lists every table of the SQL storage, in creation order.
func Entities() []interface{} {
	return []interface{}{&MasterJobEntity{}, &ExecutionJobEntity{}, &RecordEntity{}}
}
