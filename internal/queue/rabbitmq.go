package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// headerReceiveCount is the custom header this adapter stamps on every
// publish and re-publish. RabbitMQ's own x-death header is only populated
// once a message has actually been routed through a dead-letter-exchange,
// so it cannot tell a consumer how many times a message has been delivered
// and manually nacked *before* that point. Stamping and incrementing our
// own header on every requeue lets Receive report an accurate count on
// every attempt, including the first.
const headerReceiveCount = "x-receive-count"

// RabbitMQConnection is a hub which deals with rabbitmq connections,
// mirroring the shape of the project's other connection hubs.
type RabbitMQConnection struct {
	ConnectionStringSource string
	Channel                *amqp.Channel
	conn                   *amqp.Connection
	Connected              bool
	Logger                 mlog.Logger
}

// Connect dials rabbitmq and opens a channel. It makes a single attempt and
// returns any failure to the caller; it does not retry.
func (rc *RabbitMQConnection) Connect() error {
	rc.Logger.Info("connecting to rabbitmq...")

	conn, err := amqp.Dial(rc.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("queue: dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("queue: open channel: %w", err)
	}

	if err := ch.Qos(10, 0, false); err != nil {
		ch.Close()
		conn.Close()

		return fmt.Errorf("queue: set qos: %w", err)
	}

	rc.Logger.Info("connected to rabbitmq")
	rc.conn = conn
	rc.Channel = ch
	rc.Connected = true

	return nil
}

// Close releases the channel and connection.
func (rc *RabbitMQConnection) Close() {
	if rc.Channel != nil {
		_ = rc.Channel.Close()
	}

	if rc.conn != nil {
		_ = rc.conn.Close()
	}
}

// Topology names the queue/exchange layout the RabbitMQQueue declares.
type Topology struct {
	MainQueue      string
	MainExchange   string
	MainRoutingKey string

	DLQQueue      string
	DLQExchange   string
	DLQRoutingKey string

	MaxReceiveCount int
	ReceiveTimeout  time.Duration
}

// trackedDelivery pairs an in-flight amqp.Delivery with the local visibility
// lease timer guarding it: if the delivery isn't deleted or requeued before
// the lease fires, expireLease nacks it with requeue so the broker
// redelivers it, reproducing the lease-expiry semantics §4.4.1 describes on
// a broker whose own unacked-message model is connection-scoped rather than
// time-scoped.
type trackedDelivery struct {
	delivery amqp.Delivery
	timer    *time.Timer
}

// RabbitMQQueue is the amqp091-go implementation of Queue.
type RabbitMQQueue struct {
	conn     *RabbitMQConnection
	topology Topology
	logger   mlog.Logger

	mainDeliveries <-chan amqp.Delivery
	dlqDeliveries  <-chan amqp.Delivery

	mu         sync.Mutex
	inFlight   map[string]*trackedDelivery
	inFlightDL map[string]*trackedDelivery
}

// NewRabbitMQQueue declares the main/DLQ exchanges and queues, opens a
// blocking consumer on each, and returns a ready-to-use Queue.
func NewRabbitMQQueue(conn *RabbitMQConnection, topology Topology) (*RabbitMQQueue, error) {
	q := &RabbitMQQueue{
		conn:       conn,
		topology:   topology,
		logger:     conn.Logger,
		inFlight:   make(map[string]*trackedDelivery),
		inFlightDL: make(map[string]*trackedDelivery),
	}

	if err := q.declareTopology(); err != nil {
		return nil, err
	}

	mainDeliveries, err := conn.Channel.Consume(topology.MainQueue, "coderev-worker", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue: consume main queue: %w", err)
	}

	dlqDeliveries, err := conn.Channel.Consume(topology.DLQQueue, "coderev-dlq-handler", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue: consume dlq queue: %w", err)
	}

	q.mainDeliveries = mainDeliveries
	q.dlqDeliveries = dlqDeliveries

	return q, nil
}

func (q *RabbitMQQueue) declareTopology() error {
	ch := q.conn.Channel
	t := q.topology

	if err := ch.ExchangeDeclare(t.MainExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue: declare main exchange: %w", err)
	}

	if err := ch.ExchangeDeclare(t.DLQExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue: declare dlq exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(t.MainQueue, true, false, false, false, amqp.Table{"x-message-ttl": int32(86400 * 1000)}); err != nil {
		return fmt.Errorf("queue: declare main queue: %w", err)
	}

	if _, err := ch.QueueDeclare(t.DLQQueue, true, false, false, false, amqp.Table{"x-message-ttl": int32(1209600 * 1000)}); err != nil {
		return fmt.Errorf("queue: declare dlq queue: %w", err)
	}

	if err := ch.QueueBind(t.MainQueue, t.MainRoutingKey, t.MainExchange, false, nil); err != nil {
		return fmt.Errorf("queue: bind main queue: %w", err)
	}

	if err := ch.QueueBind(t.DLQQueue, t.DLQRoutingKey, t.DLQExchange, false, nil); err != nil {
		return fmt.Errorf("queue: bind dlq queue: %w", err)
	}

	return nil
}

func (q *RabbitMQQueue) Enqueue(ctx context.Context, body mmodel.QueueMessageBody) error {
	return q.publish(ctx, q.topology.MainExchange, q.topology.MainRoutingKey, body, 1)
}

func (q *RabbitMQQueue) publish(ctx context.Context, exchange, key string, body mmodel.QueueMessageBody, receiveCount int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("queue: encode message body: %w", err)
	}

	err = q.conn.Channel.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    body.JobID,
		Headers: amqp.Table{
			headerReceiveCount: int32(receiveCount),
		},
		Body: payload,
	})
	if err != nil {
		return fmt.Errorf("queue: publish to %s/%s: %w", exchange, key, err)
	}

	return nil
}

func (q *RabbitMQQueue) Receive(ctx context.Context) (*mmodel.QueueMessage, error) {
	return q.receiveFrom(ctx, q.mainDeliveries, &q.inFlight)
}

func (q *RabbitMQQueue) ReceiveDLQ(ctx context.Context) (*mmodel.QueueMessage, error) {
	return q.receiveFrom(ctx, q.dlqDeliveries, &q.inFlightDL)
}

// receiveFrom blocks on the queue's own amqp091-go consumer channel per
// SPEC_FULL.md:231, rather than polling Channel.Get on an interval. ctx
// cancellation (worker shutdown) is reported as ErrNoMessage so callers'
// receive-loops treat it the same as an empty queue and fall through to
// their own ctx.Done() check.
func (q *RabbitMQQueue) receiveFrom(ctx context.Context, deliveries <-chan amqp.Delivery, tracker *map[string]*trackedDelivery) (*mmodel.QueueMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ErrNoMessage
	case delivery, ok := <-deliveries:
		if !ok {
			return nil, fmt.Errorf("queue: consumer channel closed")
		}

		return q.track(delivery, tracker)
	}
}

func (q *RabbitMQQueue) track(delivery amqp.Delivery, tracker *map[string]*trackedDelivery) (*mmodel.QueueMessage, error) {
	var body mmodel.QueueMessageBody
	if err := json.Unmarshal(delivery.Body, &body); err != nil {
		_ = delivery.Nack(false, false)
		return nil, fmt.Errorf("queue: decode message body: %w", err)
	}

	receipt := uuid.NewString()

	lease := q.topology.ReceiveTimeout
	if lease <= 0 {
		lease = 30 * time.Second
	}

	entry := &trackedDelivery{delivery: delivery}
	entry.timer = time.AfterFunc(lease, func() { q.expireLease(receipt, tracker) })

	q.mu.Lock()
	(*tracker)[receipt] = entry
	q.mu.Unlock()

	return &mmodel.QueueMessage{
		MessageID:    delivery.MessageId,
		Receipt:      receipt,
		ReceiveCount: receiveCountFromHeaders(delivery.Headers),
		Body:         body,
	}, nil
}

// expireLease fires when a delivery has been held past its visibility
// lease without the owner deleting or requeuing it (a stalled or crashed
// worker). Nacking with requeue=true hands it back to the broker for
// immediate redelivery to another consumer, matching SPEC_FULL.md:79.
func (q *RabbitMQQueue) expireLease(receipt string, tracker *map[string]*trackedDelivery) {
	q.mu.Lock()
	entry, ok := (*tracker)[receipt]
	if ok {
		delete(*tracker, receipt)
	}
	q.mu.Unlock()

	if !ok {
		return
	}

	q.logger.Warnf("queue: visibility lease expired for message %s, nacking for redelivery", entry.delivery.MessageId)

	if err := entry.delivery.Nack(false, true); err != nil {
		q.logger.Errorf("queue: nack expired lease for message %s: %v", entry.delivery.MessageId, err)
	}
}

func receiveCountFromHeaders(headers amqp.Table) int {
	raw, ok := headers[headerReceiveCount]
	if !ok {
		return 1
	}

	switch v := raw.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}

func (q *RabbitMQQueue) Delete(ctx context.Context, msg *mmodel.QueueMessage) error {
	delivery, err := q.takeTracked(msg.Receipt, &q.inFlight)
	if err != nil {
		return err
	}

	if err := delivery.Ack(false); err != nil {
		return fmt.Errorf("queue: ack message %s: %w", msg.MessageID, err)
	}

	return nil
}

func (q *RabbitMQQueue) DeleteDLQ(ctx context.Context, msg *mmodel.QueueMessage) error {
	delivery, err := q.takeTracked(msg.Receipt, &q.inFlightDL)
	if err != nil {
		return err
	}

	if err := delivery.Ack(false); err != nil {
		return fmt.Errorf("queue: ack dlq message %s: %w", msg.MessageID, err)
	}

	return nil
}

// peekTracked returns the delivery for receipt without removing it from
// tracker or stopping its lease timer, so the lease remains a safety net
// until the caller has durably committed to acting on it.
func (q *RabbitMQQueue) peekTracked(receipt string, tracker *map[string]*trackedDelivery) (amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := (*tracker)[receipt]
	if !ok {
		return amqp.Delivery{}, fmt.Errorf("queue: unknown receipt %s", receipt)
	}

	return entry.delivery, nil
}

func (q *RabbitMQQueue) takeTracked(receipt string, tracker *map[string]*trackedDelivery) (amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := (*tracker)[receipt]
	if !ok {
		return amqp.Delivery{}, fmt.Errorf("queue: unknown receipt %s", receipt)
	}

	delete(*tracker, receipt)
	entry.timer.Stop()

	return entry.delivery, nil
}

// Requeue either republishes the message to the main queue with an
// incremented receive-count header, or — once that increment would exceed
// MaxReceiveCount — routes it to the dead-letter queue instead. reason is
// recorded only via logging here; the DLQ Handler is responsible for
// persisting it against the DLQEntry.
//
// The republish is durably issued *before* the original delivery is ever
// acked or nacked (spec.md:65, invariant I3): if the republish fails, or
// the process crashes before this function returns, the original delivery
// is still sitting unacked on the broker and its visibility lease timer is
// still armed, so it is redelivered rather than lost. Only once the
// republish has succeeded is the original taken out of tracking and
// nacked-without-requeue, removing it from its source queue.
func (q *RabbitMQQueue) Requeue(ctx context.Context, msg *mmodel.QueueMessage, reason string) (bool, error) {
	if _, err := q.peekTracked(msg.Receipt, &q.inFlight); err != nil {
		return false, err
	}

	nextCount := msg.ReceiveCount + 1
	movedToDLQ := nextCount > q.topology.MaxReceiveCount

	exchange, key := q.topology.MainExchange, q.topology.MainRoutingKey
	if movedToDLQ {
		exchange, key = q.topology.DLQExchange, q.topology.DLQRoutingKey
		q.logger.Infof("routing message %s to dlq after %d attempts: %s", msg.MessageID, msg.ReceiveCount, reason)
	} else {
		q.logger.Infof("requeuing message %s, attempt %d: %s", msg.MessageID, nextCount, reason)
	}

	if err := q.publish(ctx, exchange, key, msg.Body, nextCount); err != nil {
		return false, fmt.Errorf("queue: republish %s: %w", msg.MessageID, err)
	}

	delivery, err := q.takeTracked(msg.Receipt, &q.inFlight)
	if err != nil {
		return movedToDLQ, fmt.Errorf("queue: take delivery after republish %s: %w", msg.MessageID, err)
	}

	if err := delivery.Nack(false, false); err != nil {
		return movedToDLQ, fmt.Errorf("queue: nack original %s after republish: %w", msg.MessageID, err)
	}

	return movedToDLQ, nil
}

func (q *RabbitMQQueue) ResendToMain(ctx context.Context, body mmodel.QueueMessageBody) error {
	return q.publish(ctx, q.topology.MainExchange, q.topology.MainRoutingKey, body, 1)
}

var _ Queue = (*RabbitMQQueue)(nil)
