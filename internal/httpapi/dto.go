package httpapi

import "github.com/rshsreehari/coderev-platform/internal/mmodel"

// submitRequest is the wire shape of POST /reviews/submit. Owner is
// optional and is used only when no bearer token supplies the owner
// identity; a token's "sub" claim takes precedence (§4.6/§7).
type submitRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	FileContent string `json:"file_content" validate:"required"`
	Owner       *int64 `json:"owner,omitempty"`
}

type submitResponse struct {
	JobID    string         `json:"job_id"`
	Status   mmodel.Status  `json:"status"`
	CacheHit bool           `json:"cache_hit"`
	Result   *mmodel.Report `json:"result,omitempty"`
	Message  string         `json:"message,omitempty"`
}

type statusResponse struct {
	ID               string         `json:"id"`
	Status           mmodel.Status  `json:"status"`
	Result           *mmodel.Report `json:"result,omitempty"`
	CacheHit         bool           `json:"cache_hit"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	CreatedAt        string         `json:"created_at"`
	CompletedAt      *string        `json:"completed_at,omitempty"`
}

type dlqResolveRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type healthResponse struct {
	Status       string  `json:"status"`
	Timestamp    string  `json:"timestamp"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

type statsResponse struct {
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	QueueDepth     int     `json:"queue_depth"`
	ActiveWorkers  int     `json:"active_workers"`
	TotalComplete  int     `json:"total_complete"`
	TotalDLQ       int     `json:"total_dlq"`
}

type errorResponse struct {
	Error string `json:"error"`
}
