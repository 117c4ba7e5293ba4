package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

const (
	DefaultHost        = "localhost"
	DefaultRoutingKey  = "%c"
	DefaultContentType = "text/plain"
)

// ConnectOptions are handed to the broker dialer. A nil field was not configured;
// a non-nil field was configured, even when it holds the zero value.
type ConnectOptions struct {
	Host          *string `mapstructure:"host"`
	User          *string `mapstructure:"user"`
	Password      *string `mapstructure:"password"`
	Port          *int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	VHost         *string `mapstructure:"vhost"`
	ChannelMax    *int    `mapstructure:"channel_max" validate:"omitempty,min=0"`
	FrameMax      *int    `mapstructure:"frame_max" validate:"omitempty,min=0"`
	Heartbeat     *int    `mapstructure:"heartbeat" validate:"omitempty,min=0"` // seconds
	SSL           *bool   `mapstructure:"ssl"`
	SSLVerifyHost *bool   `mapstructure:"ssl_verify_host"`
	SSLCACert     *string `mapstructure:"ssl_cacert"`
	SSLInit       *bool   `mapstructure:"ssl_init"`
}

// DeclareOptions control the optional exchange declaration at construction.
type DeclareOptions struct {
	DeclareExchange bool    `mapstructure:"declare_exchange"`
	ExchangeType    *string `mapstructure:"exchange_type"`
	Passive         *bool   `mapstructure:"passive_exchange"`
	Durable         *bool   `mapstructure:"durable_exchange"`
	AutoDelete      *bool   `mapstructure:"auto_delete_exchange"`
}

// PublishOptions are applied to every message an appender sends.
type PublishOptions struct {
	Exchange    string `mapstructure:"exchange"`
	Mandatory   bool   `mapstructure:"mandatory"`
	Immediate   bool   `mapstructure:"immediate"`
	ContentType string `mapstructure:"content_type"`
}

// AppenderSettings is one appender's configuration map split into its option groups.
type AppenderSettings struct {
	Connect    ConnectOptions
	Declare    DeclareOptions
	Publish    PublishOptions
	RoutingKey string
}

type routingSettings struct {
	RoutingKey *string `mapstructure:"routing_key"`
}

// ParseAppender partitions a raw configuration map into option groups. Keys that
// belong to no group are ignored.
func ParseAppender(raw map[string]any) (AppenderSettings, error) {
	var s AppenderSettings
	var rk routingSettings

	for _, target := range []any{&s.Connect, &s.Declare, &s.Publish, &rk} {
		if err := decode(raw, target); err != nil {
			return AppenderSettings{}, err
		}
	}

	s.RoutingKey = DefaultRoutingKey
	if rk.RoutingKey != nil {
		s.RoutingKey = *rk.RoutingKey
	}
	if s.Publish.ContentType == "" {
		s.Publish.ContentType = DefaultContentType
	}

	if err := validator.New().Struct(s); err != nil {
		return AppenderSettings{}, fmt.Errorf("invalid appender settings: %w", err)
	}
	return s, nil
}

func decode(raw map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid appender settings: %w", err)
	}
	return nil
}

// Address returns the configured host or DefaultHost.
func (o ConnectOptions) Address() string {
	if o.Host == nil {
		return DefaultHost
	}
	return *o.Host
}

// TLS reports whether ssl was switched on.
func (o ConnectOptions) TLS() bool {
	return o.SSL != nil && *o.SSL
}

// VerifyHost defaults to true when TLS is on.
func (o ConnectOptions) VerifyHost() bool {
	return o.SSLVerifyHost == nil || *o.SSLVerifyHost
}

// CacheKey identifies a physical connection: the effective host followed by every
// configured option in lexical order. Unset options are left out entirely, so an
// option set to "" and one never set produce different keys.
func (o ConnectOptions) CacheKey() string {
	opts := map[string]string{}
	putString(opts, "user", o.User)
	putString(opts, "password", o.Password)
	putInt(opts, "port", o.Port)
	putString(opts, "vhost", o.VHost)
	putInt(opts, "channel_max", o.ChannelMax)
	putInt(opts, "frame_max", o.FrameMax)
	putInt(opts, "heartbeat", o.Heartbeat)
	putBool(opts, "ssl", o.SSL)
	putBool(opts, "ssl_verify_host", o.SSLVerifyHost)
	putString(opts, "ssl_cacert", o.SSLCACert)
	putBool(opts, "ssl_init", o.SSLInit)

	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(strconv.Quote(o.Address()))
	for _, name := range names {
		b.WriteByte(';')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(opts[name]))
	}
	return b.String()
}

func putString(m map[string]string, name string, v *string) {
	if v != nil {
		m[name] = *v
	}
}

func putInt(m map[string]string, name string, v *int) {
	if v != nil {
		m[name] = strconv.Itoa(*v)
	}
}

func putBool(m map[string]string, name string, v *bool) {
	if v != nil {
		m[name] = strconv.FormatBool(*v)
	}
}
