package output

import (
	"context"
	"time"
)

// Delivery is one message received from the notification bus.
type Delivery struct {
	Body       []byte
	Source     string // queue, subject or spool file
	ReceivedAt time.Time

	// Ack acknowledges the message to the bus. It may be nil when the
	// transport has no acknowledgment.
	Ack func() error
}

// Subscriber defines the secondary port for the notification bus.
type Subscriber interface {
	// Subscribe connects, declares the subscription and returns the
	// delivery channel. The channel is closed when the transport goes
	// away or ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan Delivery, error)

	// Err returns the error that closed the delivery channel, if any.
	Err() error

	// Close releases the transport.
	Close() error
}
