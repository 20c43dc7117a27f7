// Package mmodel holds the wire- and storage-level data types shared by
// every component: jobs, queue messages, DLQ entries, and analysis reports.
package mmodel

import "time"

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusComplete   Status = "complete"
	StatusDLQ        Status = "dlq"
)

// Job is the durable record tracked by the Job Store. Exactly one Job exists
// per submission; it is never deleted, only mutated through its lifecycle.
type Job struct {
	ID                string    `json:"id"`
	Owner             string    `json:"owner"`
	Fingerprint       string    `json:"fingerprint"`
	FileName          string    `json:"file_name"`
	FileContent       []byte    `json:"-"`
	Status            Status    `json:"status"`
	Result            *Report   `json:"result,omitempty"`
	CacheHit          bool      `json:"cache_hit"`
	Attempts          int       `json:"attempts"`
	LastError         string    `json:"last_error,omitempty"`
	DLQMessageID      string    `json:"dlq_message_id,omitempty"`
	DLQMovedAt        *time.Time `json:"dlq_moved_at,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ProcessingTimeMS  int64     `json:"processing_time_ms"`
}

// JobSummary is the trimmed-down projection returned by history listings.
type JobSummary struct {
	ID               string    `json:"id"`
	FileName         string    `json:"file_name"`
	Status           Status    `json:"status"`
	CacheHit         bool      `json:"cache_hit"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
	IssuesFound      int       `json:"issues_found"`
}

// QueueMessage is the body carried by the Job Queue, plus the transport
// metadata (receipt, receive count) attached by the Queue adapter on
// receive. It is never itself persisted; only its Body survives as part of
// a DLQEntry once routed to the dead-letter destination.
type QueueMessage struct {
	MessageID    string
	Receipt      string
	ReceiveCount int
	Body         QueueMessageBody
}

// QueueMessageBody is the portion of a QueueMessage that travels as the
// wire payload (JSON-encoded onto the transport).
type QueueMessageBody struct {
	JobID       string `json:"job_id"`
	Fingerprint string `json:"fingerprint"`
	FileName    string `json:"file_name"`
	FileContent []byte `json:"file_content"`
}

// DLQEntry is the durable record of a message that exceeded the queue's
// retry budget.
type DLQEntry struct {
	ID               string    `json:"id"`
	JobID            string    `json:"job_id"`
	MessageID        string    `json:"message_id"`
	Body             QueueMessageBody `json:"body"`
	FinalReceiveCount int      `json:"final_receive_count"`
	LastError        string    `json:"last_error"`
	MovedAt          time.Time `json:"moved_at"`
	RetryCount       int       `json:"retry_count"`
	Resolved         bool      `json:"resolved"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolutionReason string    `json:"resolution_reason,omitempty"`
}

// DLQStats summarizes the DLQ Handler's operational surface.
type DLQStats struct {
	Total            int       `json:"total"`
	Unresolved       int       `json:"unresolved"`
	UniqueJobCount   int       `json:"unique_job_count"`
	LatestMovedAt    *time.Time `json:"latest_moved_at,omitempty"`
	AverageRetryCount float64  `json:"average_retry_count"`
}
