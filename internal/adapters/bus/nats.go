package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

// NATSConfig holds NATS subscriber configuration.
type NATSConfig struct {
	URL           string
	Subject       string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSSubscriber consumes notifications from a NATS subject. Core NATS has
// no acknowledgment, so deliveries carry a no-op Ack.
type NATSSubscriber struct {
	cfg    NATSConfig
	logger *slog.Logger

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
	err  error
}

// NewNATSSubscriber creates a new NATS subscriber.
func NewNATSSubscriber(cfg NATSConfig, logger *slog.Logger) *NATSSubscriber {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultExchange
	}
	if cfg.Name == "" {
		cfg.Name = "stacsync"
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = nats.DefaultMaxReconnect
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	return &NATSSubscriber{cfg: cfg, logger: logger}
}

// connectionOptions builds NATS connection options from the configuration.
func (s *NATSSubscriber) connectionOptions(done chan<- struct{}) []nats.Option {
	var once sync.Once
	return []nats.Option{
		nats.Name(s.cfg.Name),
		nats.MaxReconnects(s.cfg.MaxReconnects),
		nats.ReconnectWait(s.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			s.logger.Info("nats reconnected", "url", c.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(c *nats.Conn) {
			if err := c.LastError(); err != nil {
				s.setErr(fmt.Errorf("%w: %w", domain.ErrBusDisconnected, err))
			}
			once.Do(func() { close(done) })
		}),
	}
}

// Subscribe implements output.Subscriber.
func (s *NATSSubscriber) Subscribe(ctx context.Context) (<-chan output.Delivery, error) {
	done := make(chan struct{})
	conn, err := nats.Connect(s.cfg.URL, s.connectionOptions(done)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w: %w", redactURL(s.cfg.URL), domain.ErrTransport, err)
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := conn.ChanSubscribe(s.cfg.Subject, msgs)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to %s: %w: %w", s.cfg.Subject, domain.ErrTransport, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.sub = sub
	s.err = nil
	s.mu.Unlock()

	s.logger.Info("subscribed to subject", "subject", s.cfg.Subject)

	out := make(chan output.Delivery)
	go s.forward(ctx, msgs, done, out)
	return out, nil
}

func (s *NATSSubscriber) forward(ctx context.Context, msgs <-chan *nats.Msg, done <-chan struct{}, out chan<- output.Delivery) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return

		case <-done:
			if ctx.Err() == nil {
				s.setErr(domain.ErrBusDisconnected)
			}
			return

		case msg := <-msgs:
			d := output.Delivery{
				Body:       msg.Data,
				Source:     msg.Subject,
				ReceivedAt: time.Now(),
				Ack:        func() error { return nil },
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *NATSSubscriber) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err implements output.Subscriber.
func (s *NATSSubscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements output.Subscriber.
func (s *NATSSubscriber) Close() error {
	s.mu.Lock()
	conn, sub := s.conn, s.sub
	s.conn, s.sub = nil, nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if sub != nil {
		_ = sub.Unsubscribe()
	}
	conn.Close()
	return nil
}
