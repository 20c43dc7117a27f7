// Package audit implements the optional, write-only audit trail described
// in §6: a forensic side-channel that records one AuditRecord per
// completed job, independent of and never read by the Job Store.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// Writer is the contract the Worker depends on. Append must never block
// completion on a failure: implementations log and drop rather than
// propagate an error to the caller.
type Writer interface {
	Append(ctx context.Context, record mmodel.AuditRecord)
}

// NoopWriter is used when AUDIT_MONGO_URI is not configured.
type NoopWriter struct{}

func (NoopWriter) Append(context.Context, mmodel.AuditRecord) {}

// MongoConnection is a hub which deals with mongo connections, mirroring
// the shape of the project's other connection hubs.
type MongoConnection struct {
	ConnectionStringSource string
	Database               string
	Logger                 mlog.Logger
	client                 *mongo.Client
}

// Connect dials MongoDB and pings it.
func (mc *MongoConnection) Connect(ctx context.Context) error {
	mc.Logger.Info("connecting to mongo audit trail...")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mc.ConnectionStringSource))
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return err
	}

	mc.Logger.Info("connected to mongo audit trail")
	mc.client = client

	return nil
}

func (mc *MongoConnection) collection() *mongo.Collection {
	return mc.client.Database(mc.Database).Collection("audit_records")
}

// MongoWriter is the go.mongodb.org/mongo-driver backed Writer.
type MongoWriter struct {
	conn   *MongoConnection
	logger mlog.Logger
}

// NewMongoWriter returns a Writer backed by conn.
func NewMongoWriter(conn *MongoConnection) *MongoWriter {
	return &MongoWriter{conn: conn, logger: conn.Logger}
}

// Append inserts one AuditRecord document, fire-and-forget: failures are
// logged, never surfaced, since the audit trail is purely additive and
// must never affect job completion (§6).
func (w *MongoWriter) Append(ctx context.Context, record mmodel.AuditRecord) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	if _, err := w.conn.collection().InsertOne(ctx, record); err != nil {
		w.logger.Warnf("audit: failed to append record for job %s: %v", record.JobID, err)
	}
}

var _ Writer = (*MongoWriter)(nil)
var _ Writer = NoopWriter{}
