package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rshsreehari/coderev-platform/internal/cache"
	"github.com/rshsreehari/coderev-platform/internal/fingerprint"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// TestRedisCache_BackendUnavailable_IsTreatedAsMiss covers the §4.2
// liveness guarantee: a cache backend that cannot be reached must never
// fail the caller, only degrade to a miss.
func TestRedisCache_BackendUnavailable_IsTreatedAsMiss(t *testing.T) {
	conn := &cache.RedisConnection{
		ConnectionStringSource: "redis://127.0.0.1:1/0",
		Logger:                 mlog.NewNop(),
	}

	c := cache.NewRedisCache(conn, cache.Options{TTLSeconds: 60, KeyPrefix: "coderev:"}, mlog.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	report, ok := c.Get(ctx, fingerprint.Hash([]byte("x")))
	assert.False(t, ok)
	assert.Nil(t, report)

	assert.NotPanics(t, func() {
		c.Put(ctx, fingerprint.Hash([]byte("x")), &mmodel.Report{FileName: "x.js"})
	})
}
