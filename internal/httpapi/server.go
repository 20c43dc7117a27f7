// Package httpapi implements the Submission Service's and DLQ Handler's
// external HTTP surface (§4.6/§4.8): a thin Fiber layer translating
// requests into calls against submission.Service and dlq.Handler.
package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/rshsreehari/coderev-platform/internal/dlq"
	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/stats"
	"github.com/rshsreehari/coderev-platform/internal/submission"
)

// Server wires the Fiber app to its domain dependencies.
type Server struct {
	submission *submission.Service
	dlq        *dlq.Handler
	jobs       jobstore.Store
	stats      *stats.Collector
	validation *validation
	logger     mlog.Logger

	// ActiveWorkers is reported verbatim by GET /stats; it is a static
	// configuration value, not a live gauge, since the Worker pool's
	// goroutine count is fixed for the process lifetime (§4.7).
	ActiveWorkers int
}

// New builds a Server. Panics if the validator's translation tables fail to
// register, which only happens on a locale-registration bug caught in
// testing, never at request time.
func New(svc *submission.Service, dlqHandler *dlq.Handler, jobs jobstore.Store, collector *stats.Collector, activeWorkers int, logger mlog.Logger) *Server {
	v, err := newValidation()
	if err != nil {
		panic(err)
	}

	return &Server{
		submission:    svc,
		dlq:           dlqHandler,
		jobs:          jobs,
		stats:         collector,
		validation:    v,
		logger:        logger,
		ActiveWorkers: activeWorkers,
	}
}

// NewRouter builds the Fiber app and registers every route named in §4.6
// and §4.8's HTTP surface.
func (s *Server) NewRouter() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return writeError(c, err)
		},
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(withOwnerFromBearer())

	app.Post("/reviews/submit", s.submitReview)
	app.Get("/reviews/status/:job_id", s.reviewStatus)
	app.Get("/reviews/history", s.reviewHistory)

	app.Get("/dlq", s.listDLQ)
	app.Get("/dlq/stats", s.dlqStats)
	app.Get("/dlq/:id", s.getDLQEntry)
	app.Post("/dlq/:id/retry", s.retryDLQEntry)
	app.Post("/dlq/:id/resolve", s.resolveDLQEntry)

	app.Get("/health", s.health)
	app.Get("/stats", s.statsHandler)

	return app
}

func (s *Server) cacheHitRate() float64 {
	if s.stats == nil {
		return 0
	}

	return s.stats.Snapshot().HitRate
}
