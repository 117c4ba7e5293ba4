package config

const (
	BrokerRabbitMQ = "rabbitmq"
	BrokerPubSub   = "gcp-pubsub"
)

// BrokerSettings selects the broker client used by every appender of a process.
type BrokerSettings struct {
	Type      string `mapstructure:"type" validate:"omitempty,oneof=rabbitmq gcp-pubsub"`
	ProjectID string `mapstructure:"project_id" validate:"required_if=Type gcp-pubsub"` // Pub/Sub only
}

// Kind returns the broker type, defaulting to RabbitMQ.
func (b BrokerSettings) Kind() string {
	if b.Type == "" {
		return BrokerRabbitMQ
	}
	return b.Type
}
