package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/DrGermanius/withdraw/internal/model"
)

const (
	headerAttempt = "x-attempt"

	reconnectDelay       = 5 * time.Second
	maxReconnectAttempts = 10

	// pause before handing back a message whose retry could not be published
	requeueDelay = time.Second
)

type IPublisher interface {
	Publish(ctx context.Context, queue string, body []byte, headers amqp.Table) error
}

// Topology names the settlement queue, one delay queue per retry delay and
// the queue holding messages that exhausted every retry.
type Topology struct {
	Queue       string
	RetryDelays []time.Duration
}

// RetryQueue returns the delay queue for a message that already failed
// attempt times, or false once the delays are exhausted.
func (t Topology) RetryQueue(attempt int) (string, bool) {
	if attempt < 0 || attempt >= len(t.RetryDelays) {
		return "", false
	}
	return fmt.Sprintf("%s.retry.%s", t.Queue, t.RetryDelays[attempt]), true
}

func (t Topology) FailedQueue() string {
	return t.Queue + ".failed"
}

func (t Topology) declare(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", t.Queue, err)
	}

	for i, d := range t.RetryDelays {
		name, _ := t.RetryQueue(i)
		args := amqp.Table{
			"x-message-ttl":             d.Milliseconds(),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": t.Queue,
		}
		if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare retry queue %s: %w", name, err)
		}
	}

	if _, err := ch.QueueDeclare(t.FailedQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", t.FailedQueue(), err)
	}
	return nil
}

type RabbitQueue struct {
	url      string
	topology Topology
	logger   *zap.SugaredLogger

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel
}

func NewRabbitQueue(url string, topology Topology, logger *zap.SugaredLogger) (*RabbitQueue, error) {
	q := &RabbitQueue{url: url, topology: topology, logger: logger}
	if err := q.connect(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *RabbitQueue) connect() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err = q.topology.declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	if err = ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	q.mu.Lock()
	q.conn = conn
	q.pub = ch
	q.mu.Unlock()

	q.logger.Infow("connected to RabbitMQ", "queue", q.topology.Queue)
	return nil
}

func (q *RabbitQueue) reconnect(ctx context.Context) error {
	q.closeConn()

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		q.logger.Infow("attempting to reconnect to RabbitMQ", "attempt", attempt)
		if err := q.connect(); err == nil {
			return nil
		}

		delay := reconnectDelay * time.Duration(attempt)
		q.logger.Warnw("reconnection failed, retrying", "attempt", attempt, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.New("max reconnection attempts reached")
}

// Dispatch hands a claimed withdrawal to the settlement queue. The message
// carries only the withdrawal id.
func (q *RabbitQueue) Dispatch(ctx context.Context, id uuid.UUID) error {
	body, err := json.Marshal(model.DispatchMessage{WithdrawalID: id})
	if err != nil {
		return err
	}
	return q.Publish(ctx, q.topology.Queue, body, amqp.Table{headerAttempt: int32(0)})
}

// Publish waits for the broker confirm, so a nil error means the message is durable.
func (q *RabbitQueue) Publish(ctx context.Context, queue string, body []byte, headers amqp.Table) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, err := q.publisher()
	if err != nil {
		return err
	}

	conf, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for confirm from %s: %w", queue, err)
	}
	if !ok {
		return fmt.Errorf("broker rejected message for %s", queue)
	}
	return nil
}

// publisher returns the confirm channel, reopening it on the live connection
// when the broker closed only the channel. q.mu must be held.
func (q *RabbitQueue) publisher() (*amqp.Channel, error) {
	if q.pub != nil && !q.pub.IsClosed() {
		return q.pub, nil
	}
	if q.conn == nil || q.conn.IsClosed() {
		return nil, errors.New("connection is not open")
	}

	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to reopen publisher channel: %w", err)
	}
	if err = ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	q.logger.Warn("publisher channel reopened")
	q.pub = ch
	return ch, nil
}

// Consume runs workers over the settlement queue until ctx is done, reconnecting
// when the broker drops the connection.
func (q *RabbitQueue) Consume(ctx context.Context, c *Consumer, workers, prefetch int) error {
	for {
		err := q.consumeOnce(ctx, c, workers, prefetch)
		if ctx.Err() != nil {
			return nil
		}

		q.logger.Errorw("consumer interrupted", "error", err)
		if err = q.reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (q *RabbitQueue) consumeOnce(ctx context.Context, c *Consumer, workers, prefetch int) error {
	q.mu.Lock()
	conn := q.conn
	q.mu.Unlock()
	if conn == nil {
		return errors.New("connection is not initialized")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	// closing the channel returns unacked deliveries to the queue
	defer ch.Close()

	if err = ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(q.topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	q.logger.Infow("starting consumer workers", "workers", workers, "queue", q.topology.Queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						q.logger.Warnw("message channel closed", "worker_id", workerID)
						return
					}
					c.HandleDelivery(ctx, d)
				}
			}
		}(i)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("delivery channel closed")
}

func (q *RabbitQueue) closeConn() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pub != nil {
		_ = q.pub.Close()
		q.pub = nil
	}
	if q.conn != nil {
		_ = q.conn.Close()
		q.conn = nil
	}
}

func (q *RabbitQueue) Close() {
	q.closeConn()
	q.logger.Info("rabbitmq connection closed")
}

// Consumer turns deliveries into Settle calls and maps failures onto the
// retry topology. Redelivery is always safe: Settle ignores terminal rows.
type Consumer struct {
	settler       ISettler
	publisher     IPublisher
	topology      Topology
	handleTimeout time.Duration
	requeueDelay  time.Duration
	logger        *zap.SugaredLogger
}

func NewConsumer(settler ISettler, publisher IPublisher, topology Topology, handleTimeout time.Duration, logger *zap.SugaredLogger) *Consumer {
	return &Consumer{
		settler:       settler,
		publisher:     publisher,
		topology:      topology,
		handleTimeout: handleTimeout,
		requeueDelay:  requeueDelay,
		logger:        logger,
	}
}

func (c *Consumer) WithRequeueDelay(d time.Duration) *Consumer {
	c.requeueDelay = d
	return c
}

func (c *Consumer) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	var msg model.DispatchMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.WithdrawalID == uuid.Nil {
		c.logger.Errorw("failed to unmarshal message", "body", string(d.Body), "error", err)
		_ = d.Nack(false, false)
		return
	}

	attempt := attemptOf(d.Headers)

	hctx, cancel := context.WithTimeout(ctx, c.handleTimeout)
	res, err := c.settler.Settle(hctx, msg.WithdrawalID)
	cancel()

	if err == nil {
		c.logger.Debugw("settlement handled", "withdraw", msg.WithdrawalID, "status", res.Status, "attempt", attempt)
		if err = d.Ack(false); err != nil {
			c.logger.Warnw("failed to ack message", "withdraw", msg.WithdrawalID, "error", err)
		}
		return
	}

	if ctx.Err() != nil {
		// shutting down: hand the message back untouched
		_ = d.Nack(false, true)
		return
	}

	c.retry(ctx, d, msg.WithdrawalID, attempt, err)
}

func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, id uuid.UUID, attempt int, cause error) {
	queue, ok := c.topology.RetryQueue(attempt)
	if !ok {
		queue = c.topology.FailedQueue()
		c.logger.Errorw("settlement retries exhausted", "withdraw", id, "attempt", attempt, "error", cause)
	} else {
		c.logger.Warnw("settlement failed, scheduling retry", "withdraw", id, "attempt", attempt, "queue", queue, "error", cause)
	}

	if err := c.publisher.Publish(ctx, queue, d.Body, amqp.Table{headerAttempt: int32(attempt + 1)}); err != nil {
		c.logger.Errorw("failed to publish retry, requeueing", "withdraw", id, "queue", queue, "error", err)
		// the broker redelivers at once, so hold the message for a while first
		select {
		case <-time.After(c.requeueDelay):
		case <-ctx.Done():
		}
		_ = d.Nack(false, true)
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Warnw("failed to ack message", "withdraw", id, "error", err)
	}
}

func attemptOf(headers amqp.Table) int {
	switch v := headers[headerAttempt].(type) {
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
