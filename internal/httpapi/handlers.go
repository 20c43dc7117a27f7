package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rshsreehari/coderev-platform/internal/mmodel"
	"github.com/rshsreehari/coderev-platform/internal/stats"
	"github.com/rshsreehari/coderev-platform/internal/submission"
)

func (s *Server) submitReview(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fmt.Errorf("%w: malformed request body", ErrInvalidInput))
	}

	if err := s.validation.Struct(req); err != nil {
		return writeError(c, err)
	}

	owner := ownerFor(c, req.Owner)

	result, err := s.submission.Submit(c.UserContext(), submission.Request{
		FileName:    req.FileName,
		FileContent: []byte(req.FileContent),
		Owner:       owner,
	})
	if err != nil {
		return writeError(c, err)
	}

	resp := submitResponse{JobID: result.JobID, Status: result.Status, CacheHit: result.CacheHit, Result: result.Report}
	if result.Status == mmodel.StatusQueued {
		resp.Message = "submission queued for analysis"
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// ownerFor resolves the owner identity: a bearer token's "sub" claim (stamped
// into Locals by withOwnerFromBearer) takes precedence; the request body's
// owner field is used when no token is presented (§4.6, local/dev mode).
func ownerFor(c *fiber.Ctx, bodyOwner *int64) string {
	if owner, ok := c.Locals(ownerLocalsKey).(string); ok && owner != "" {
		return owner
	}

	if bodyOwner != nil {
		return strconv.FormatInt(*bodyOwner, 10)
	}

	return ""
}

func (s *Server) reviewStatus(c *fiber.Ctx) error {
	jobID := c.Params("job_id")

	job, err := s.submission.Status(c.UserContext(), jobID)
	if err != nil {
		return writeError(c, err)
	}

	resp := statusResponse{
		ID:               job.ID,
		Status:           job.Status,
		Result:           job.Result,
		CacheHit:         job.CacheHit,
		ProcessingTimeMS: job.ProcessingTimeMS,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (s *Server) reviewHistory(c *fiber.Ctx) error {
	owner, _ := c.Locals(ownerLocalsKey).(string)
	if owner == "" {
		owner = c.Query("owner")
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	summaries, err := s.submission.History(c.UserContext(), owner, limit)
	if err != nil {
		return writeError(c, err)
	}

	if summaries == nil {
		summaries = []mmodel.JobSummary{}
	}

	return c.Status(fiber.StatusOK).JSON(summaries)
}

func (s *Server) listDLQ(c *fiber.Ctx) error {
	var resolved *bool
	if raw := c.Query("resolved"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			resolved = &b
		}
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	entries, err := s.dlq.List(c.UserContext(), resolved, limit, offset)
	if err != nil {
		return writeError(c, err)
	}

	if entries == nil {
		entries = []mmodel.DLQEntry{}
	}

	return c.Status(fiber.StatusOK).JSON(entries)
}

func (s *Server) dlqStats(c *fiber.Ctx) error {
	summary, err := s.dlq.Stats(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(summary)
}

func (s *Server) getDLQEntry(c *fiber.Ctx) error {
	entry, err := s.dlq.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(entry)
}

func (s *Server) retryDLQEntry(c *fiber.Ctx) error {
	if err := s.dlq.Retry(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) resolveDLQEntry(c *fiber.Ctx) error {
	var req dlqResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fmt.Errorf("%w: malformed request body", ErrInvalidInput))
	}

	if err := s.validation.Struct(req); err != nil {
		return writeError(c, err)
	}

	if err := s.dlq.Resolve(c.UserContext(), c.Params("id"), req.Reason); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(healthResponse{
		Status:       "ok",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		CacheHitRate: s.cacheHitRate(),
	})
}

func (s *Server) statsHandler(c *fiber.Ctx) error {
	var snapshot stats.Snapshot
	if s.stats != nil {
		snapshot = s.stats.Snapshot()
	}

	queued, _ := s.jobs.CountByStatus(c.UserContext(), mmodel.StatusQueued)
	processing, _ := s.jobs.CountByStatus(c.UserContext(), mmodel.StatusProcessing)
	complete, _ := s.jobs.CountByStatus(c.UserContext(), mmodel.StatusComplete)
	inDLQ, _ := s.jobs.CountByStatus(c.UserContext(), mmodel.StatusDLQ)

	return c.Status(fiber.StatusOK).JSON(statsResponse{
		CacheHits:     snapshot.Hits,
		CacheMisses:   snapshot.Misses,
		CacheHitRate:  snapshot.HitRate,
		QueueDepth:    queued + processing,
		ActiveWorkers: s.ActiveWorkers,
		TotalComplete: complete,
		TotalDLQ:      inDLQ,
	})
}
