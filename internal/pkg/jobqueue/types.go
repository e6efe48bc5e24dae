package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeForwardToHub   JobType = "forward_to_hub"
	JobTypeArchivePayload JobType = "archive_payload"
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

// ForwardJobPayload carries a raw webhook body to the hub forward task.
// The body is stored as a string; ingestion only accepts UTF-8 bodies.
type ForwardJobPayload struct {
	LogID   uint   `json:"log_id"`
	EventID string `json:"event_id"`
	Body    string `json:"body"`
}

// ToMap converts the payload to a map for storage
func (p ForwardJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"log_id":   p.LogID,
		"event_id": p.EventID,
		"body":     p.Body,
	}
}

// ForwardJobPayloadFromMap creates a payload from a map
func ForwardJobPayloadFromMap(data map[string]interface{}) (*ForwardJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ForwardJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ArchivePayloadJobPayload carries a raw webhook body to the S3 archive.
type ArchivePayloadJobPayload struct {
	LogID      uint      `json:"log_id"`
	EventID    string    `json:"event_id"`
	ReceivedAt time.Time `json:"received_at"`
	Body       string    `json:"body"`
}

// ToMap converts the payload to a map for storage
func (p ArchivePayloadJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"log_id":      p.LogID,
		"event_id":    p.EventID,
		"received_at": p.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"body":        p.Body,
	}
}

// ArchivePayloadJobPayloadFromMap creates a payload from a map
func ArchivePayloadJobPayloadFromMap(data map[string]interface{}) (*ArchivePayloadJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ArchivePayloadJobPayload
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
