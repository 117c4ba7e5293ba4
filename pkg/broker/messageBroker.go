package broker

import (
	"context"

	"github.com/zoff-tech/go-amqplog/pkg/config"
)

// Message is a single rendered log line on its way to an exchange.
type Message struct {
	Exchange    string
	RoutingKey  string
	Body        []byte
	ContentType string
	Mandatory   bool
	Immediate   bool
}

// Connection is a connected broker client with its publishing channel open.
// Implementations serialize Publish and DeclareExchange internally.
type Connection interface {
	// DeclareExchange asserts the exchange exists with the given properties.
	DeclareExchange(ctx context.Context, name string, opts config.DeclareOptions) error
	// Publish sends msg. Errors wrap ErrPublish.
	Publish(ctx context.Context, msg Message) error
	// Close releases the connection. Calling it more than once is safe.
	Close() error
}

// Dialer connects to a broker and opens the publishing channel.
// Errors wrap ErrConnect or ErrChannelOpen.
type Dialer interface {
	Dial(ctx context.Context, opts config.ConnectOptions) (Connection, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, opts config.ConnectOptions) (Connection, error)

func (f DialerFunc) Dial(ctx context.Context, opts config.ConnectOptions) (Connection, error) {
	return f(ctx, opts)
}
