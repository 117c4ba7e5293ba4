package broker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-amqplog/pkg/config"
)

const (
	defaultAMQPPort    = 5672
	defaultAMQPSPort   = 5671
	defaultUser        = "guest"
	defaultPassword    = "guest"
	defaultVHost       = "/"
	defaultHeartbeat   = 10 * time.Second
	defaultLocale      = "en_US"
	defaultExchangeTyp = "direct"

	tracerName = "go-amqplog"
)

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	ExchangeDeclarePassive(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpDialFunc func(uri string, cfg amqp.Config) (amqpConnection, error)

// streadwayConnection narrows *amqp.Connection to amqpConnection.
type streadwayConnection struct {
	*amqp.Connection
}

func (c streadwayConnection) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialStreadway(uri string, cfg amqp.Config) (amqpConnection, error) {
	conn, err := amqp.DialConfig(uri, cfg)
	if err != nil {
		return nil, err
	}
	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		for err := range notifyClose {
			log.Printf("RabbitMQ connection closed: %v", err)
		}
	}()
	return streadwayConnection{conn}, nil
}

type rabbitMqDialer struct {
	dial amqpDialFunc
}

// NewRabbitMqDialer returns a Dialer backed by github.com/streadway/amqp.
func NewRabbitMqDialer() Dialer {
	return &rabbitMqDialer{dial: dialStreadway}
}

func (d *rabbitMqDialer) Dial(ctx context.Context, opts config.ConnectOptions) (Connection, error) {
	uri, cfg, err := amqpConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	conn, err := d.dial(uri, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, opts.Address(), err)
	}

	// The first channel on a fresh connection is channel 1.
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrChannelOpen, err)
	}

	return &rabbitMqConnection{connection: conn, channel: channel}, nil
}

// amqpConfig maps connect options onto a broker URL and client config.
func amqpConfig(opts config.ConnectOptions) (string, amqp.Config, error) {
	scheme, port := "amqp", defaultAMQPPort
	vhost := deref(opts.VHost, defaultVHost)

	cfg := amqp.Config{
		Vhost:     vhost,
		Heartbeat: defaultHeartbeat,
		Locale:    defaultLocale,
	}
	if opts.Heartbeat != nil {
		cfg.Heartbeat = time.Duration(*opts.Heartbeat) * time.Second
	}
	if opts.ChannelMax != nil {
		cfg.ChannelMax = *opts.ChannelMax
	}
	if opts.FrameMax != nil {
		cfg.FrameSize = *opts.FrameMax
	}

	if opts.TLS() {
		scheme, port = "amqps", defaultAMQPSPort

		tlsCfg := &tls.Config{
			ServerName:         opts.Address(),
			InsecureSkipVerify: !opts.VerifyHost(), //nolint:gosec // ssl_verify_host=0
			MinVersion:         tls.VersionTLS12,
		}
		if opts.SSLCACert != nil && *opts.SSLCACert != "" {
			pool, err := loadCertPool(*opts.SSLCACert)
			if err != nil {
				return "", amqp.Config{}, err
			}
			tlsCfg.RootCAs = pool
		}
		cfg.TLSClientConfig = tlsCfg
	}

	if opts.Port != nil {
		port = *opts.Port
	}

	u := url.URL{
		Scheme:  scheme,
		User:    url.UserPassword(deref(opts.User, defaultUser), deref(opts.Password, defaultPassword)),
		Host:    net.JoinHostPort(opts.Address(), strconv.Itoa(port)),
		Path:    "/" + vhost,
		RawPath: "/" + url.PathEscape(vhost),
	}
	return u.String(), cfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

func deref[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

type rabbitMqConnection struct {
	mu         sync.Mutex
	connection amqpConnection
	channel    amqpChannel
	closed     bool
}

func (r *rabbitMqConnection) DeclareExchange(ctx context.Context, name string, opts config.DeclareOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: %s: %w", ErrDeclare, name, amqp.ErrClosed)
	}

	declare := r.channel.ExchangeDeclare
	if deref(opts.Passive, false) {
		declare = r.channel.ExchangeDeclarePassive
	}

	err := declare(
		name,
		deref(opts.ExchangeType, defaultExchangeTyp),
		deref(opts.Durable, false),
		deref(opts.AutoDelete, false),
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeclare, name, err)
	}
	return nil
}

func (r *rabbitMqConnection) Publish(ctx context.Context, msg Message) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("rabbitmq"),
			semconv.MessagingDestinationKindKey.String("topic"),
			semconv.MessagingDestinationKey.String(msg.Exchange),
			semconv.MessagingRabbitmqRoutingKeyKey.String(msg.RoutingKey),
		),
	)
	defer span.End()

	// Inject the trace context into the message headers
	traceHeaders := make(map[string]string)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(traceHeaders))

	headers := make(amqp.Table, len(traceHeaders))
	for k, v := range traceHeaders {
		headers[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		span.RecordError(amqp.ErrClosed)
		return fmt.Errorf("%w: %w", ErrPublish, amqp.ErrClosed)
	}

	err := r.channel.Publish(
		msg.Exchange, msg.RoutingKey, msg.Mandatory, msg.Immediate,
		amqp.Publishing{
			Headers:     headers,
			ContentType: msg.ContentType,
			Timestamp:   time.Now(),
			MessageId:   uuid.NewString(),
			Body:        msg.Body,
		},
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	span.SetAttributes(
		attribute.Int("messaging.message_payload_size_bytes", len(msg.Body)),
	)

	return nil
}

func (r *rabbitMqConnection) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	chErr := r.channel.Close()
	connErr := r.connection.Close()
	if errors.Is(chErr, amqp.ErrClosed) {
		chErr = nil
	}
	if errors.Is(connErr, amqp.ErrClosed) {
		connErr = nil
	}
	return errors.Join(chErr, connErr)
}
