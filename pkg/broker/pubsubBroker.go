package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/zoff-tech/go-amqplog/pkg/config"
)

// Pub/Sub has no routing keys; the key travels as a message attribute.
const (
	RoutingKeyAttribute  = "routing_key"
	ContentTypeAttribute = "content_type"
)

var errTopicNotFound = errors.New("topic does not exist")

type pubSubDialer struct {
	projectID string
}

// NewPubSubDialer returns a Dialer backed by cloud.google.com/go/pubsub. Exchanges map
// to topics. A configured host targets an emulator at host[:port] without credentials.
func NewPubSubDialer(cfg config.BrokerSettings) Dialer {
	return &pubSubDialer{projectID: cfg.ProjectID}
}

func (d *pubSubDialer) Dial(ctx context.Context, opts config.ConnectOptions) (Connection, error) {
	client, err := pubsub.NewClient(ctx, d.projectID, clientOptions(opts)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	return &pubSubConnection{client: client, topics: map[string]*pubsub.Topic{}}, nil
}

func clientOptions(opts config.ConnectOptions) []option.ClientOption {
	if opts.Host == nil {
		return nil
	}
	endpoint := *opts.Host
	if opts.Port != nil {
		endpoint = net.JoinHostPort(endpoint, strconv.Itoa(*opts.Port))
	}
	return []option.ClientOption{
		option.WithEndpoint(endpoint),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

type pubSubConnection struct {
	mu     sync.Mutex
	client *pubsub.Client
	topics map[string]*pubsub.Topic
	closed bool
}

func (p *pubSubConnection) topic(name string) *pubsub.Topic {
	t, ok := p.topics[name]
	if !ok {
		t = p.client.Topic(name)
		p.topics[name] = t
	}
	return t
}

func (p *pubSubConnection) DeclareExchange(ctx context.Context, name string, opts config.DeclareOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("%w: %s: connection closed", ErrDeclare, name)
	}

	exists, err := p.topic(name).Exists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeclare, name, err)
	}
	if exists {
		return nil
	}
	if opts.Passive != nil && *opts.Passive {
		return fmt.Errorf("%w: %s: %w", ErrDeclare, name, errTopicNotFound)
	}
	if _, err := p.client.CreateTopic(ctx, name); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeclare, name, err)
	}
	return nil
}

func (p *pubSubConnection) Publish(ctx context.Context, msg Message) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("pubsub"),
			semconv.MessagingDestinationKindKey.String("topic"),
			semconv.MessagingDestinationKey.String(msg.Exchange),
		),
	)
	defer span.End()

	// Inject the trace context into the message attributes
	attributes := make(map[string]string)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attributes))
	attributes[RoutingKeyAttribute] = msg.RoutingKey
	attributes[ContentTypeAttribute] = msg.ContentType

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		err := errors.New("connection closed")
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	res := p.topic(msg.Exchange).Publish(ctx, &pubsub.Message{
		Data:       msg.Body,
		Attributes: attributes,
	})
	if _, err := res.Get(ctx); err != nil { // wait for server ack
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	span.SetAttributes(
		attribute.Int("messaging.message_payload_size_bytes", len(msg.Body)),
	)

	return nil
}

func (p *pubSubConnection) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		t.Stop()
	}
	return p.client.Close()
}
