package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Settings struct {
	Broker        BrokerSettings            `mapstructure:"broker"`
	ErrorLog      ErrorLog                  `mapstructure:"error_log"`
	Observability Observability             `mapstructure:"observability"`
	Appenders     map[string]map[string]any `mapstructure:"appenders" validate:"required,min=1"`
}

func (c *Settings) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	for name, raw := range c.Appenders {
		if _, err := ParseAppender(raw); err != nil {
			return fmt.Errorf("appender %q: %w", name, err)
		}
	}
	return nil
}

// LoadFromFile reads amqplog.yaml (and amqplog.<ENVIRONMENT>.yaml when present) from
// filePath or the working directory, then applies AMQPLOG_* environment overrides.
func LoadFromFile(filePath string) (*Settings, error) {
	env := getEnvWithDefaultLookup("ENVIRONMENT", "development")

	cfg := &Settings{}
	viper.SetConfigType("yaml")
	viper.SetConfigName("amqplog")
	viper.AddConfigPath(filePath)
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("No config file found or read error: %v (will rely on env)", err)
	}

	if err := mergeConfig(filePath, "amqplog."+env); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to merge %s config: %w", env, err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Settings) LoadFromEnv() error {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("AMQPLOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // env vars like AMQPLOG_BROKER_TYPE

	for _, key := range []string{
		"broker.type",
		"broker.project_id",
		"error_log.output",
		"error_log.file_path",
		"error_log.max_size",
		"error_log.max_backups",
		"error_log.max_age",
		"error_log.compress",
		"observability.service_name",
		"observability.tracing_url",
		"observability.tracing_insecure",
	} {
		if err := viper.BindEnv(key); err != nil {
			return err
		}
	}

	return viper.Unmarshal(c)
}

func mergeConfig(path string, name string) error {
	viper.SetConfigName(name)
	viper.AddConfigPath(path)
	return viper.MergeInConfig()
}

func getEnvWithDefaultLookup(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
