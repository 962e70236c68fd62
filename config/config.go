// Package config loads the YAML description of a taskmesh run: which channel
// backend to use, how to route, and which workers to host.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/taskmesh/logging"
)

// Environment variables that override file values.
const (
	EnvChannelBackend = "TASKMESH_CHANNEL_BACKEND"
	EnvRedisAddr      = "TASKMESH_REDIS_ADDR"
	EnvAMQPURL        = "TASKMESH_AMQP_URL"
	EnvLogLevel       = "TASKMESH_LOG_LEVEL"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvAnthropicKey   = "ANTHROPIC_API_KEY"
)

// Channel backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendRabbitMQ = "rabbitmq"
)

// Worker kinds. A sequential worker chains its Steps; each step's result is
// the next step's task.
const (
	KindStatic     = "static"
	KindEcho       = "echo"
	KindTool       = "tool"
	KindModel      = "model"
	KindSequential = "sequential"
)

// Config is the root document.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Channel      ChannelConfig      `yaml:"channel"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	ControlPlane ControlPlaneConfig `yaml:"controlPlane"`
	Workers      []WorkerConfig     `yaml:"workers"`
}

// LoggingConfig selects the logger backend and output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
	// Backend is "slog" (default) or "zap".
	Backend string `yaml:"backend"`
	// File enables a rotated log file instead of stderr.
	File *logging.RotationConfig `yaml:"file"`
}

// ChannelConfig selects and configures the message channel.
type ChannelConfig struct {
	Backend  string         `yaml:"backend"`
	Codec    string         `yaml:"codec"` // json or cbor, network backends only
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Address   string        `yaml:"address"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"keyPrefix"`
	BlockWait time.Duration `yaml:"blockWait"`
}

// RabbitMQConfig configures the RabbitMQ backend.
type RabbitMQConfig struct {
	URL         string `yaml:"url"`
	QueuePrefix string `yaml:"queuePrefix"`
	Prefetch    int    `yaml:"prefetch"`
	Durable     bool   `yaml:"durable"`
}

// ModelConfig selects a language model.
type ModelConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic or mock
	Name     string `yaml:"name"`
	APIKey   string `yaml:"apiKey"`
}

// OrchestratorConfig configures routing.
type OrchestratorConfig struct {
	// Strategy is "lexical" (default) or "model".
	Strategy string       `yaml:"strategy"`
	MaxHops  int          `yaml:"maxHops"`
	Model    *ModelConfig `yaml:"model"`
}

// ControlPlaneConfig configures the control plane.
type ControlPlaneConfig struct {
	ReplyTopic   string        `yaml:"replyTopic"`
	ReplyTimeout time.Duration `yaml:"replyTimeout"`
}

// WorkerConfig describes one hosted worker.
type WorkerConfig struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Topic       string        `yaml:"topic"`
	Kind        string        `yaml:"kind"`
	TaskTimeout time.Duration `yaml:"taskTimeout"`

	// Response is the answer of a static worker.
	Response string `yaml:"response"`
	// Tool names the builtin tool of a tool worker.
	Tool string `yaml:"tool"`
	// Tools, Instruction and Model configure a model worker. Instruction is a
	// text/template that sees .Task, .TaskID and .Now.
	Tools       []string     `yaml:"tools"`
	Instruction string       `yaml:"instruction"`
	Model       *ModelConfig `yaml:"model"`
	// Steps are the stages of a sequential worker. Their names only label
	// errors; they are not registered as workers.
	Steps []WorkerConfig `yaml:"steps"`
}

// Default returns the configuration of the secret fact scenario on the
// in-memory channel.
func Default() *Config {
	cfg := &Config{
		Workers: []WorkerConfig{
			{
				Name:        "secret_fact_agent",
				Description: "Useful for getting the secret fact.",
				Kind:        KindTool,
				Tool:        "get_the_secret_fact",
			},
			{
				Name:        "dumb_fact_agent",
				Description: "Useful for getting random dumb facts.",
				Kind:        KindStatic,
				Response:    "A group of llamas is called a herd.",
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML file, applies defaults and environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML content like Load.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "slog"
	}
	if c.Channel.Backend == "" {
		c.Channel.Backend = BackendMemory
	}
	if c.Channel.Codec == "" {
		c.Channel.Codec = "json"
	}
	if c.Channel.Redis.KeyPrefix == "" {
		c.Channel.Redis.KeyPrefix = "taskmesh"
	}
	if c.Channel.Redis.BlockWait == 0 {
		c.Channel.Redis.BlockWait = time.Second
	}
	if c.Channel.RabbitMQ.QueuePrefix == "" {
		c.Channel.RabbitMQ.QueuePrefix = "taskmesh"
	}
	if c.Channel.RabbitMQ.Prefetch == 0 {
		c.Channel.RabbitMQ.Prefetch = 1
	}
	if c.Orchestrator.Strategy == "" {
		c.Orchestrator.Strategy = "lexical"
	}
	if c.Orchestrator.MaxHops < 1 {
		c.Orchestrator.MaxHops = 1
	}
	if c.ControlPlane.ReplyTimeout == 0 {
		c.ControlPlane.ReplyTimeout = 60 * time.Second
	}
	for i := range c.Workers {
		defaultKind(&c.Workers[i])
	}
}

func defaultKind(w *WorkerConfig) {
	if w.Kind == "" {
		w.Kind = KindStatic
	}
	for i := range w.Steps {
		defaultKind(&w.Steps[i])
	}
}

// ApplyEnv overlays environment overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvChannelBackend); v != "" {
		c.Channel.Backend = strings.ToLower(v)
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Channel.Redis.Address = v
	}
	if v := getenv(EnvAMQPURL); v != "" {
		c.Channel.RabbitMQ.URL = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	models := []*ModelConfig{c.Orchestrator.Model}
	var collect func(ws []WorkerConfig)
	collect = func(ws []WorkerConfig) {
		for i := range ws {
			models = append(models, ws[i].Model)
			collect(ws[i].Steps)
		}
	}
	collect(c.Workers)
	for _, m := range models {
		if m == nil || m.APIKey != "" {
			continue
		}
		switch m.Provider {
		case "openai":
			m.APIKey = getenv(EnvOpenAIKey)
		case "anthropic":
			m.APIKey = getenv(EnvAnthropicKey)
		}
	}
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Channel.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Channel.Redis.Address == "" {
			return errors.New("channel.redis.address is required for the redis backend")
		}
	case BackendRabbitMQ:
		if c.Channel.RabbitMQ.URL == "" {
			return errors.New("channel.rabbitmq.url is required for the rabbitmq backend")
		}
	default:
		return fmt.Errorf("unknown channel backend %q", c.Channel.Backend)
	}

	switch c.Channel.Codec {
	case "json", "cbor":
	default:
		return fmt.Errorf("unknown channel codec %q", c.Channel.Codec)
	}

	switch c.Logging.Backend {
	case "slog", "zap":
	default:
		return fmt.Errorf("unknown logging backend %q", c.Logging.Backend)
	}

	switch c.Orchestrator.Strategy {
	case "lexical":
	case "model":
		if err := c.Orchestrator.Model.validate("orchestrator.model"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown orchestrator strategy %q", c.Orchestrator.Strategy)
	}

	names := map[string]bool{}
	for i, w := range c.Workers {
		if w.Name == "" {
			return fmt.Errorf("workers[%d]: name cannot be empty", i)
		}
		if names[w.Name] {
			return fmt.Errorf("workers[%d]: duplicate name %s", i, w.Name)
		}
		names[w.Name] = true

		if err := w.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (w WorkerConfig) validate() error {
	switch w.Kind {
	case KindStatic, KindEcho:
	case KindTool:
		if w.Tool == "" {
			return fmt.Errorf("worker %s: tool cannot be empty", w.Name)
		}
	case KindModel:
		if err := w.Model.validate("worker " + w.Name + " model"); err != nil {
			return err
		}
	case KindSequential:
		if len(w.Steps) == 0 {
			return fmt.Errorf("worker %s: steps cannot be empty", w.Name)
		}
		for _, step := range w.Steps {
			if err := step.validate(); err != nil {
				return fmt.Errorf("worker %s: %w", w.Name, err)
			}
		}
	default:
		return fmt.Errorf("worker %s: unknown kind %q", w.Name, w.Kind)
	}
	return nil
}

func (m *ModelConfig) validate(field string) error {
	if m == nil {
		return fmt.Errorf("%s is required", field)
	}
	switch m.Provider {
	case "openai", "anthropic", "mock":
		return nil
	default:
		return fmt.Errorf("%s: unknown provider %q", field, m.Provider)
	}
}

// Logger builds the configured logger.
func (c LoggingConfig) Logger() logging.Logger {
	level := logging.ParseLevel(c.Level)
	cfg := logging.DefaultLoggerConfig()
	if c.File != nil && c.File.Filename != "" {
		cfg.Output = logging.NewRotatingWriter(*c.File)
	}
	if c.Backend == "zap" {
		return logging.NewZapAdapter(logging.NewZapLogger(level, c.Format, cfg.Output))
	}
	cfg.Level = level
	cfg.Format = c.Format
	return logging.NewLogger(cfg)
}
