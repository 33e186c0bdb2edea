package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Provider kinds accepted in provider.kind.
const (
	KindAnthropic = "anthropic"
	KindBedrock   = "bedrock"
	KindVertexAI  = "vertex-ai"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Usage    UsageConfig    `mapstructure:"usage"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port" validate:"required"`
	Env  string `mapstructure:"env"`
	// shared secret every /v1 request must present
	AuthToken string `mapstructure:"auth_token" validate:"required"`
	// interval between SSE keep-alive comments, 0 disables them
	KeepAlive       time.Duration `mapstructure:"keep_alive" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address is the listen address.
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

// ProviderConfig selects exactly one backend for the process lifetime.
type ProviderConfig struct {
	Kind string `mapstructure:"kind" validate:"required,oneof=anthropic bedrock vertex-ai"`
	// transport timeout applied to every backend call, 0 means none
	Timeout   time.Duration   `mapstructure:"timeout"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	Vertex    VertexConfig    `mapstructure:"vertex"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key" validate:"required"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	Version string `mapstructure:"version"`
}

// BedrockConfig is mostly empty on purpose: credentials and the default region
// come from the AWS SDK resolution chain.
type BedrockConfig struct {
	Region string `mapstructure:"region"`
}

type VertexConfig struct {
	Project string `mapstructure:"project" validate:"required"`
	Region  string `mapstructure:"region" validate:"required"`
	// overrides https://{region}-aiplatform.googleapis.com
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type UsageConfig struct {
	// sqlite DSN for usage records, empty disables persistence
	DSN string `mapstructure:"dsn"`
	// per-report deadline for the reporters
	Timeout time.Duration `mapstructure:"timeout"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Enabled  bool          `mapstructure:"enabled"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Option customises how LoadConfig resolves values.
type Option func(v *viper.Viper) error

// WithConfigFile reads an explicit file instead of searching for config.yaml.
func WithConfigFile(path string) Option {
	return func(v *viper.Viper) error {
		if path != "" {
			v.SetConfigFile(path)
		}
		return nil
	}
}

// WithProvider forces provider.kind, used by the per-backend subcommands.
func WithProvider(kind string) Option {
	return func(v *viper.Viper) error {
		v.Set("provider.kind", kind)
		return nil
	}
}

// BindFlag lets a command line flag take precedence over file and env values.
// Flags the user did not set fall through to the other sources.
func BindFlag(key string, flag *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		return v.BindPFlag(key, flag)
	}
}

// conventional env names, accepted next to the SECTION_KEY form viper
// derives automatically.
var envAliases = map[string][]string{
	"server.auth_token":          {"SERVER_AUTH_TOKEN", "AUTH_TOKEN"},
	"provider.anthropic.api_key": {"PROVIDER_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
	"provider.bedrock.region":    {"PROVIDER_BEDROCK_REGION", "AWS_REGION"},
	"provider.vertex.project":    {"PROVIDER_VERTEX_PROJECT", "VERTEXAI_PROJECT"},
	"provider.vertex.region":     {"PROVIDER_VERTEX_REGION", "VERTEXAI_REGION"},
}

// LoadConfig reads configuration from file, environment variables and flags.
func LoadConfig(opts ...Option) (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Default Values
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.keep_alive", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("provider.anthropic.version", "2023-06-01")
	v.SetDefault("usage.timeout", 5*time.Second)
	v.SetDefault("usage.redis.enabled", false)
	v.SetDefault("usage.redis.ttl", 90*24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("tracing.service_name", "anthropic-gateway")

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}

// Validate checks the server section and the section of the selected backend.
// Sections of backends that are not selected are ignored.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c.Server); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if err := validate.Struct(c.Log); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}
	if err := validate.Struct(c.Usage.Redis); err != nil {
		return fmt.Errorf("invalid redis config: %w", err)
	}
	if err := validate.Var(c.Provider.Kind, "required,oneof=anthropic bedrock vertex-ai"); err != nil {
		return fmt.Errorf("invalid provider kind %q: %w", c.Provider.Kind, err)
	}

	var section interface{}
	switch c.Provider.Kind {
	case KindAnthropic:
		section = c.Provider.Anthropic
	case KindBedrock:
		section = c.Provider.Bedrock
	case KindVertexAI:
		section = c.Provider.Vertex
	}
	if err := validate.Struct(section); err != nil {
		return fmt.Errorf("invalid %s provider config: %w", c.Provider.Kind, err)
	}

	return nil
}
