package config

type Observability struct {
	ServiceName     string `mapstructure:"service_name" validate:"required_with=TracingURL"`
	TracingURL      string `mapstructure:"tracing_url"`
	TracingInsecure bool   `mapstructure:"tracing_insecure"` // plain HTTP export
}

// ErrorLog configures where construction and publish failures are reported.
type ErrorLog struct {
	Output     string `mapstructure:"output" validate:"omitempty,oneof=stderr file"`
	FilePath   string `mapstructure:"file_path" validate:"required_if=Output file"`
	MaxSize    int    `mapstructure:"max_size"`    // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}
