package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rshsreehari/coderev-platform/internal/fingerprint"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// RedisConnection is a hub which deals with redis connections, mirroring
// the connect-once-and-reuse shape the rest of this repository's adapters
// follow for their own backing stores.
type RedisConnection struct {
	ConnectionStringSource string
	Client                 *redis.Client
	Logger                 mlog.Logger
}

// Connect establishes (and pings) the redis connection.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	rc.Logger.Info("connecting to redis...")

	opts, err := redis.ParseURL(rc.ConnectionStringSource)
	if err != nil {
		return err
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		rc.Logger.Errorf("redis ping failed: %v", err)
		return err
	}

	rc.Logger.Info("connected to redis")
	rc.Client = client

	return nil
}

// GetClient returns the live client, connecting lazily if necessary.
func (rc *RedisConnection) GetClient(ctx context.Context) (*redis.Client, error) {
	if rc.Client == nil {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.Client, nil
}

// RedisCache is the Redis-backed implementation of Cache. Report values are
// msgpack-encoded: more compact and faster to decode than JSON for the
// nested Report/Issue shape, and it round-trips []byte fields without
// base64 inflation.
type RedisCache struct {
	conn   *RedisConnection
	ttl    time.Duration
	prefix string
	logger mlog.Logger
}

// NewRedisCache constructs a RedisCache over an already-configured
// RedisConnection.
func NewRedisCache(conn *RedisConnection, opts Options, logger mlog.Logger) *RedisCache {
	return &RedisCache{
		conn:   conn,
		ttl:    time.Duration(opts.TTLSeconds) * time.Second,
		prefix: opts.KeyPrefix,
		logger: logger,
	}
}

func (c *RedisCache) key(fp fingerprint.Fingerprint) string {
	return c.prefix + string(fp)
}

// Get never fails the caller: any backend error, miss, or decode failure is
// treated as a cache miss per §4.2.
func (c *RedisCache) Get(ctx context.Context, fp fingerprint.Fingerprint) (*mmodel.Report, bool) {
	client, err := c.conn.GetClient(ctx)
	if err != nil {
		c.logger.Warnf("cache get: connection unavailable: %v", err)
		return nil, false
	}

	raw, err := client.Get(ctx, c.key(fp)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warnf("cache get: backend error, treating as miss: %v", err)
		}

		return nil, false
	}

	var report mmodel.Report
	if err := msgpack.Unmarshal(raw, &report); err != nil {
		c.logger.Warnf("cache get: corrupt value, treating as miss: %v", err)
		return nil, false
	}

	return &report, true
}

// Put is best-effort: any backend error is logged, never surfaced, per
// §4.2.
func (c *RedisCache) Put(ctx context.Context, fp fingerprint.Fingerprint, report *mmodel.Report) {
	client, err := c.conn.GetClient(ctx)
	if err != nil {
		c.logger.Warnf("cache put: connection unavailable, skipping: %v", err)
		return
	}

	raw, err := msgpack.Marshal(report)
	if err != nil {
		c.logger.Errorf("cache put: failed to encode report: %v", err)
		return
	}

	if err := client.Set(ctx, c.key(fp), raw, c.ttl).Err(); err != nil {
		c.logger.Warnf("cache put: backend error, dropping write: %v", err)
	}
}
