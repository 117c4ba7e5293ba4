// Package appender forwards log events to a broker exchange.
//
// An Appender turns each event into a publish on a connection shared through a
// broker.Registry. Logging calls never fail: errors go to the diagnostic log, a failed
// publish drops its message and the connection is re-established on the next call.
package appender

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/zoff-tech/go-amqplog/pkg/broker"
	"github.com/zoff-tech/go-amqplog/pkg/config"
	"github.com/zoff-tech/go-amqplog/pkg/diag"
	"github.com/zoff-tech/go-amqplog/pkg/telemetry"
)

const (
	categoryPlaceholder = "%c"
	levelPlaceholder    = "%p"
)

// Event is a log record as rendered by the host logging framework.
type Event struct {
	Category string
	Level    string
	Message  []byte
}

type Option func(*Appender)

// WithErrorLog sets the diagnostic log. Defaults to stderr.
func WithErrorLog(l *log.Logger) Option {
	return func(a *Appender) {
		a.errorLog = l
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Appender) {
		a.metrics = m
	}
}

type Appender struct {
	name        string
	settings    config.AppenderSettings
	registry    *broker.Registry
	interpolate bool
	errorLog    *log.Logger
	metrics     *telemetry.Metrics

	mu        sync.Mutex
	conn      broker.Connection
	connected bool // a connection was held at some point
	declared  bool
	closed    bool
}

// New builds an appender from its configuration map and connects it. Only invalid
// configuration is returned as an error; connect and declare failures are reported
// to the error log and the appender retries on its next event.
func New(ctx context.Context, name string, raw map[string]any, registry *broker.Registry, opts ...Option) (*Appender, error) {
	settings, err := config.ParseAppender(raw)
	if err != nil {
		return nil, fmt.Errorf("appender %q: %w", name, err)
	}

	a := &Appender{
		name:        name,
		settings:    settings,
		registry:    registry,
		interpolate: strings.Contains(settings.RoutingKey, categoryPlaceholder) || strings.Contains(settings.RoutingKey, levelPlaceholder),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.errorLog == nil {
		a.errorLog, _ = diag.NewErrorLog(config.ErrorLog{})
	}

	a.mu.Lock()
	err = a.connect(ctx)
	a.mu.Unlock()
	if err != nil {
		a.report(err)
	}

	return a, nil
}

func (a *Appender) Name() string {
	return a.name
}

// Settings returns the parsed configuration.
func (a *Appender) Settings() config.AppenderSettings {
	return a.settings
}

// connect takes the registry's current connection for the appender's options,
// dialing when there is none. The first time a connection is held the exchange is
// declared if configured; a declare failure is reported but keeps the connection.
// Callers hold a.mu.
func (a *Appender) connect(ctx context.Context) error {
	conn, err := a.registry.Acquire(ctx, a.settings.Connect)
	if err != nil {
		a.conn = nil
		return err
	}
	if a.connected && conn != a.conn {
		a.metrics.IncReconnect(a.name)
	}
	a.conn = conn
	a.connected = true

	if a.settings.Declare.DeclareExchange && !a.declared {
		a.declared = true
		if err := conn.DeclareExchange(ctx, a.settings.Publish.Exchange, a.settings.Declare); err != nil {
			a.report(err)
		}
	}
	return nil
}

// RoutingKey renders the routing key template for ev.
func (a *Appender) RoutingKey(ev Event) string {
	if !a.interpolate {
		return a.settings.RoutingKey
	}
	return strings.NewReplacer(
		categoryPlaceholder, ev.Category,
		levelPlaceholder, ev.Level,
	).Replace(a.settings.RoutingKey)
}

// Publish sends ev and returns what went wrong, if anything. The connection is
// looked up in the registry on every call, so a connection replaced by another
// appender sharing it is picked up here. A failed publish invalidates the
// connection so the following call reconnects; the event itself is not retried.
func (a *Appender) Publish(ctx context.Context, ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return broker.ErrNotConnected
	}
	if err := a.connect(ctx); err != nil {
		return err
	}

	conn := a.conn
	err := publish(ctx, conn, broker.Message{
		Exchange:    a.settings.Publish.Exchange,
		RoutingKey:  a.RoutingKey(ev),
		Body:        ev.Message,
		ContentType: a.settings.Publish.ContentType,
		Mandatory:   a.settings.Publish.Mandatory,
		Immediate:   a.settings.Publish.Immediate,
	})
	if err != nil {
		a.conn = nil
		// The connection is already broken; its close error adds nothing.
		_ = a.registry.Invalidate(conn)
		return err
	}

	a.metrics.IncPublished(a.name)
	return nil
}

// publish turns a panicking broker client into a publish error.
func publish(ctx context.Context, conn broker.Connection, msg broker.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", broker.ErrPublish, r)
		}
	}()
	return conn.Publish(ctx, msg)
}

// Append is the logging entry point: it publishes ev and reports any failure.
// It never panics and never returns an error.
func (a *Appender) Append(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			a.report(fmt.Errorf("%w: panic: %v", broker.ErrPublish, r))
		}
	}()

	if err := a.Publish(ctx, ev); err != nil {
		a.report(err)
	}
}

// Close detaches the appender from its connection. The registry owns the
// connection itself and closes it on Registry.Close.
func (a *Appender) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.conn = nil
}

func (a *Appender) report(err error) {
	a.errorLog.Printf("appender %q: %v", a.name, err)
	a.metrics.IncFailure(a.name, broker.Kind(err))
}
