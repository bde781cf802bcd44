package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
)

// Broker holds one AMQP connection for the receipt queue.
type Broker struct {
	conn  *amqp.Connection
	queue string
	mu    sync.Mutex
}

func Dial(url, queue string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	b := &Broker{conn: conn, queue: queue}
	if err := b.declare(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

// ErrBrokerClosed is returned once Close has run.
var ErrBrokerClosed = errors.New("rabbitmq broker is closed")

func (b *Broker) channel() (*amqp.Channel, error) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return nil, ErrBrokerClosed
	}
	return conn.Channel()
}

func (b *Broker) declare() error {
	ch, err := b.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		b.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", b.queue, err)
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// Publisher is a vendor ReceiptSink that goes through the broker.
type Publisher struct {
	broker *Broker
}

func NewPublisher(b *Broker) *Publisher {
	return &Publisher{broker: b}
}

func (p *Publisher) Publish(ctx context.Context, r model.DeliveryReceipt) error {
	ch, err := p.broker.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return ch.Publish(
		"",             // default exchange
		p.broker.queue, // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    r.MessageID,
			Body:         body,
		},
	)
}

// Receiver is what the consumer hands deliveries to; *Ingress satisfies it.
type Receiver interface {
	Receive(ctx context.Context, r model.DeliveryReceipt) (Ack, error)
}

// Consumer drains the receipt queue into a Receiver with manual acks.
type Consumer struct {
	broker   *Broker
	receiver Receiver
	log      logrus.FieldLogger

	// RequeueDelay holds a delivery back before it is returned to the queue.
	RequeueDelay time.Duration
}

const defaultRequeueDelay = 2 * time.Second

func NewConsumer(b *Broker, receiver Receiver, log logrus.FieldLogger) *Consumer {
	return &Consumer{broker: b, receiver: receiver, log: log, RequeueDelay: defaultRequeueDelay}
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.broker.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		c.broker.queue,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	c.log.WithField("queue", c.broker.queue).Info("receipt consumer running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("receipt channel closed")
			}
			c.dispatch(ctx, d)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	switch c.Handle(ctx, d.Body, d.Redelivered) {
	case OutcomeAck:
		_ = d.Ack(false)
	case OutcomeRequeue:
		// an unacked delivery still counts against Qos, and a closed
		// channel hands it back to the broker anyway
		time.AfterFunc(c.RequeueDelay, func() { _ = d.Nack(false, true) })
	default:
		_ = d.Nack(false, false)
	}
}

// Outcome is what to do with a consumed delivery.
type Outcome int

const (
	OutcomeDrop Outcome = iota
	OutcomeAck
	OutcomeRequeue
)

// Handle decodes one delivery and passes it on. A receipt for an unknown
// message is retried once, since it can overtake the log write of its send.
func (c *Consumer) Handle(ctx context.Context, body []byte, redelivered bool) Outcome {
	var r model.DeliveryReceipt
	if err := json.Unmarshal(body, &r); err != nil {
		c.log.WithError(err).Warn("invalid receipt payload")
		return OutcomeDrop
	}

	_, err := c.receiver.Receive(ctx, r)
	switch {
	case err == nil:
		return OutcomeAck
	case appErrors.IsValidation(err):
		c.log.WithError(err).WithField("message_id", r.MessageID).Warn("rejected receipt")
		return OutcomeDrop
	case appErrors.IsNotFound(err):
		if redelivered {
			c.log.WithError(err).WithField("message_id", r.MessageID).Warn("dropping receipt for unknown message")
			return OutcomeDrop
		}
		return OutcomeRequeue
	default:
		c.log.WithError(err).WithField("message_id", r.MessageID).Error("failed to ingest receipt")
		return OutcomeRequeue
	}
}
