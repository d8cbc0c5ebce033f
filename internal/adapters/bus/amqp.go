// Package bus provides notification subscribers for AMQP, NATS and a local
// spool directory.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

// Defaults for the AMQP subscriber.
const (
	DefaultExchange     = "fairease-s3-events"
	DefaultExchangeType = "topic"
	DefaultRoutingKey   = "#"
)

// AMQPConfig holds AMQP subscriber configuration.
type AMQPConfig struct {
	URL             string
	Exchange        string
	ExchangeType    string
	DeclareExchange bool
	RoutingKey      string
	Prefetch        int
}

// AMQPSubscriber consumes notifications from an exclusive, auto-deleted
// queue bound to an exchange.
type AMQPSubscriber struct {
	cfg    AMQPConfig
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	err  error
}

// NewAMQPSubscriber creates a new AMQP subscriber.
func NewAMQPSubscriber(cfg AMQPConfig, logger *slog.Logger) *AMQPSubscriber {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = DefaultExchangeType
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = DefaultRoutingKey
	}
	return &AMQPSubscriber{cfg: cfg, logger: logger}
}

// Subscribe implements output.Subscriber.
func (s *AMQPSubscriber) Subscribe(ctx context.Context) (<-chan output.Delivery, error) {
	conn, err := amqp.Dial(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w: %w", redactURL(s.cfg.URL), domain.ErrTransport, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w: %w", domain.ErrTransport, err)
	}

	queue, err := s.declare(ch)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declaring subscription: %w: %w", domain.ErrTransport, err)
	}

	tag := "stacsync-" + uuid.NewString()
	msgs, err := ch.ConsumeWithContext(ctx, queue, tag,
		false, // autoAck: the consumer loop acknowledges on receipt
		true,  // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("starting consumer: %w: %w", domain.ErrTransport, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.ch = ch
	s.err = nil
	s.mu.Unlock()

	s.logger.Info("subscribed to exchange",
		"exchange", s.cfg.Exchange,
		"queue", queue,
		"routing_key", s.cfg.RoutingKey,
		"consumer_tag", tag,
	)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	out := make(chan output.Delivery)
	go s.forward(ctx, queue, msgs, closed, out)
	return out, nil
}

func (s *AMQPSubscriber) declare(ch *amqp.Channel) (string, error) {
	if s.cfg.DeclareExchange {
		if err := ch.ExchangeDeclare(s.cfg.Exchange, s.cfg.ExchangeType,
			true,  // durable
			false, // autoDelete
			false, // internal
			false, // noWait
			nil,
		); err != nil {
			return "", err
		}
	}

	if s.cfg.Prefetch > 0 {
		if err := ch.Qos(s.cfg.Prefetch, 0, false); err != nil {
			return "", err
		}
	}

	q, err := ch.QueueDeclare("",
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return "", err
	}

	if err := ch.QueueBind(q.Name, s.cfg.RoutingKey, s.cfg.Exchange, false, nil); err != nil {
		return "", err
	}
	return q.Name, nil
}

func (s *AMQPSubscriber) forward(ctx context.Context, queue string, msgs <-chan amqp.Delivery, closed <-chan *amqp.Error, out chan<- output.Delivery) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return

		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				s.setErr(fmt.Errorf("%w: %s", domain.ErrBusDisconnected, amqpErr.Error()))
			}
			return

		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() == nil {
					s.setErr(domain.ErrBusDisconnected)
				}
				return
			}

			d := output.Delivery{
				Body:       msg.Body,
				Source:     queue,
				ReceivedAt: time.Now(),
				Ack:        func() error { return msg.Ack(false) },
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *AMQPSubscriber) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err implements output.Subscriber.
func (s *AMQPSubscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements output.Subscriber.
func (s *AMQPSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.ch = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

// redactURL hides the password of a broker URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
