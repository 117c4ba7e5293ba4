package appender

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zoff-tech/go-amqplog/pkg/broker"
	"github.com/zoff-tech/go-amqplog/pkg/config"
	"github.com/zoff-tech/go-amqplog/pkg/diag"
	"github.com/zoff-tech/go-amqplog/pkg/telemetry"
)

var newErrorLog = diag.NewErrorLog

// Set owns every appender configured for a process together with the registry
// they share. Create it at startup and Close it at shutdown.
type Set struct {
	Registry *broker.Registry

	appenders         map[string]*Appender
	shutdownTelemetry func()
	closeErrorLog     func() error
}

// NewSet builds a registry for cfg.Broker and one appender per entry of
// cfg.Appenders, in name order. Tracing is installed when cfg.Observability asks
// for it. opts apply to every appender after the defaults derived from cfg.
func NewSet(ctx context.Context, cfg *config.Settings, opts ...Option) (*Set, error) {
	dialer, err := broker.NewDialer(cfg.Broker)
	if err != nil {
		return nil, err
	}
	return newSet(ctx, cfg, broker.NewRegistry(dialer), opts...)
}

func newSet(ctx context.Context, cfg *config.Settings, registry *broker.Registry, opts ...Option) (*Set, error) {
	s := &Set{
		Registry:          registry,
		appenders:         make(map[string]*Appender, len(cfg.Appenders)),
		shutdownTelemetry: func() {},
		closeErrorLog:     func() error { return nil },
	}

	if telemetry.Enabled(cfg.Observability) {
		shutdown, err := telemetry.Init(cfg.Observability)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		s.shutdownTelemetry = shutdown
	}

	errorLog, closeErrorLog := newErrorLog(cfg.ErrorLog)
	s.closeErrorLog = closeErrorLog
	opts = append([]Option{WithErrorLog(errorLog)}, opts...)

	names := make([]string, 0, len(cfg.Appenders))
	for name := range cfg.Appenders {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		app, err := New(ctx, name, cfg.Appenders[name], registry, opts...)
		if err != nil {
			return nil, errors.Join(err, s.Close())
		}
		s.appenders[name] = app
	}

	return s, nil
}

// Get returns the appender configured under name.
func (s *Set) Get(name string) (*Appender, bool) {
	app, ok := s.appenders[name]
	return app, ok
}

// Names lists the configured appenders in order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.appenders))
	for name := range s.appenders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close detaches every appender, closes the shared connections, flushes traces and
// closes the error log file, if any.
func (s *Set) Close() error {
	for _, app := range s.appenders {
		app.Close()
	}
	err := s.Registry.Close()
	s.shutdownTelemetry()
	return errors.Join(err, s.closeErrorLog())
}
