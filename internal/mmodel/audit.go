package mmodel

import "time"

// AuditRecord is a durable, write-only forensic record of one completed
// analysis, independent of the Job Store (§3/§6 domain-stack addition).
type AuditRecord struct {
	Fingerprint    string    `bson:"fingerprint" json:"fingerprint"`
	JobID          string    `bson:"job_id" json:"job_id"`
	FileName       string    `bson:"file_name" json:"file_name"`
	DetectorTimingsMS map[string]int64 `bson:"detector_timings_ms,omitempty" json:"detector_timings_ms,omitempty"`
	AIRawResponse  string    `bson:"ai_raw_response,omitempty" json:"ai_raw_response,omitempty"`
	RecordedAt     time.Time `bson:"recorded_at" json:"recorded_at"`
}
