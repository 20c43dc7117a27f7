// Package cache implements the fingerprint-keyed Result Cache: a
// read-through, best-effort-write store sitting in front of the Job Store.
package cache

import (
	"context"

	"github.com/rshsreehari/coderev-platform/internal/fingerprint"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// Cache is the contract consumed by the Submission Service and the Worker.
// Implementations must never fail the caller: Get degrades to a miss and
// Put degrades to a logged no-op on backend error.
type Cache interface {
	Get(ctx context.Context, fp fingerprint.Fingerprint) (*mmodel.Report, bool)
	Put(ctx context.Context, fp fingerprint.Fingerprint, report *mmodel.Report)
}

// Options configures an implementation's behavior; recognized fields mirror
// §4.2 of the specification.
type Options struct {
	// TTLSeconds is the expiry applied to every write. Zero means no expiry.
	TTLSeconds int
	// KeyPrefix namespaces every cache key, so multiple environments/tenants
	// can share a single Redis instance safely.
	KeyPrefix string
}
