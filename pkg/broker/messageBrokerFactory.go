package broker

import (
	"fmt"

	"github.com/zoff-tech/go-amqplog/pkg/config"
)

// NewDialer returns the dialer for the configured broker type.
func NewDialer(cfg config.BrokerSettings) (Dialer, error) {
	switch cfg.Kind() {
	case config.BrokerRabbitMQ:
		return NewRabbitMqDialer(), nil
	case config.BrokerPubSub:
		return NewPubSubDialer(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", cfg.Type)
	}
}
