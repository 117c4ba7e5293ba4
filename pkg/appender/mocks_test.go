package appender

import (
	"bytes"
	"context"
	"log"

	"github.com/stretchr/testify/mock"

	"github.com/zoff-tech/go-amqplog/pkg/broker"
	"github.com/zoff-tech/go-amqplog/pkg/config"
	"github.com/zoff-tech/go-amqplog/pkg/diag"
)

// --- Mocks ---

type mockConnection struct {
	mock.Mock
}

func (m *mockConnection) DeclareExchange(ctx context.Context, name string, opts config.DeclareOptions) error {
	return m.Called(name, opts).Error(0)
}

func (m *mockConnection) Publish(ctx context.Context, msg broker.Message) error {
	return m.Called(msg).Error(0)
}

func (m *mockConnection) Close() error {
	return m.Called().Error(0)
}

func newMockConnection() *mockConnection {
	conn := new(mockConnection)
	conn.On("Close").Return(nil).Maybe()
	return conn
}

type mockDialer struct {
	mock.Mock
}

func (m *mockDialer) Dial(ctx context.Context, opts config.ConnectOptions) (broker.Connection, error) {
	args := m.Called(opts.Address())
	conn, _ := args.Get(0).(broker.Connection)
	return conn, args.Error(1)
}

func newTestErrorLog() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return diag.NewErrorLogWithWriter(&buf), &buf
}
