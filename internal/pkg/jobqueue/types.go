package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeRestore      JobType = "restore"
	JobTypeResultBackup JobType = "result_backup"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// RestoreJobPayload contains the payload for restoration jobs
type RestoreJobPayload struct {
	TaskUUID string `json:"task_uuid"`
}

// ToMap converts the payload to a map for storage
func (p RestoreJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"task_uuid": p.TaskUUID,
	}
}

// RestoreJobPayloadFromMap creates a payload from a map
func RestoreJobPayloadFromMap(data map[string]interface{}) (*RestoreJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload RestoreJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ResultBackupJobPayload contains the payload for result backup jobs
type ResultBackupJobPayload struct {
	TaskUUID   string `json:"task_uuid"`
	ResultPath string `json:"result_path"`
}

// ToMap converts the payload to a map for storage
func (p ResultBackupJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"task_uuid":   p.TaskUUID,
		"result_path": p.ResultPath,
	}
}

// ResultBackupJobPayloadFromMap creates a payload from a map
func ResultBackupJobPayloadFromMap(data map[string]interface{}) (*ResultBackupJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ResultBackupJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
