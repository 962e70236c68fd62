// Package bootstrap turns a config.Config into a ready-to-launch runtime:
// channel, orchestrator, control plane and worker services.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	oai "github.com/openai/openai-go"

	"github.com/hupe1980/taskmesh/agent"
	"github.com/hupe1980/taskmesh/channel"
	"github.com/hupe1980/taskmesh/config"
	"github.com/hupe1980/taskmesh/controlplane"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/launcher"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
	anthropicmodel "github.com/hupe1980/taskmesh/model/anthropic"
	openaimodel "github.com/hupe1980/taskmesh/model/openai"
	"github.com/hupe1980/taskmesh/orchestrator"
	"github.com/hupe1980/taskmesh/tool"
	"github.com/hupe1980/taskmesh/worker"
)

// Runtime holds the participants of one run.
type Runtime struct {
	Logger       logging.Logger
	Channel      channel.Channel
	ControlPlane *controlplane.ControlPlane
	Workers      []*worker.Service
}

// Launcher returns a single-use launcher over the runtime.
func (r *Runtime) Launcher() *launcher.Launcher {
	workers := make([]launcher.Worker, len(r.Workers))
	for i, w := range r.Workers {
		workers[i] = w
	}
	return launcher.New(r.Channel, r.ControlPlane, workers, func(o *launcher.Options) {
		o.Logger = r.Logger
	})
}

// Build assembles a runtime. Nothing is started.
func Build(cfg *config.Config, tools *tool.Registry) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if tools == nil {
		tools = Builtins()
	}
	logger := cfg.Logging.Logger()

	ch, err := Channel(cfg.Channel, logger)
	if err != nil {
		return nil, err
	}
	orch, err := Orchestrator(cfg.Orchestrator, logger)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	cp := controlplane.New(ch, orch, func(o *controlplane.Options) {
		o.Logger = logger
		o.ReplyTopic = cfg.ControlPlane.ReplyTopic
		o.ReplyTimeout = cfg.ControlPlane.ReplyTimeout
	})

	rt := &Runtime{Logger: logger, Channel: ch, ControlPlane: cp}
	for _, wc := range cfg.Workers {
		exec, err := Executor(wc, tools, logger)
		if err != nil {
			_ = ch.Close()
			return nil, err
		}
		desc := core.WorkerDescriptor{Name: wc.Name, Topic: wc.Topic, Description: wc.Description}
		rt.Workers = append(rt.Workers, worker.New(desc, exec, ch, func(o *worker.Options) {
			o.Logger = logger
			o.TaskTimeout = wc.TaskTimeout
		}))
	}
	return rt, nil
}

// Channel builds the configured transport.
func Channel(cfg config.ChannelConfig, logger logging.Logger) (channel.Channel, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return channel.NewMemoryChannel(func(o *channel.MemoryOptions) { o.Logger = logger }), nil
	case config.BackendRedis:
		codec, err := channel.CodecByName(cfg.Codec)
		if err != nil {
			return nil, err
		}
		ch, err := channel.NewRedisChannel(func(o *channel.RedisOptions) {
			o.Address = cfg.Redis.Address
			o.Password = cfg.Redis.Password
			o.DB = cfg.Redis.DB
			o.KeyPrefix = cfg.Redis.KeyPrefix
			o.BlockWait = cfg.Redis.BlockWait
			o.Codec = codec
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		return ch, nil
	case config.BackendRabbitMQ:
		codec, err := channel.CodecByName(cfg.Codec)
		if err != nil {
			return nil, err
		}
		ch, err := channel.NewRabbitMQChannel(func(o *channel.RabbitMQOptions) {
			o.URL = cfg.RabbitMQ.URL
			o.QueuePrefix = cfg.RabbitMQ.QueuePrefix
			o.Prefetch = cfg.RabbitMQ.Prefetch
			o.Durable = cfg.RabbitMQ.Durable
			o.AutoDelete = !cfg.RabbitMQ.Durable
			o.Codec = codec
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		return ch, nil
	default:
		return nil, fmt.Errorf("unknown channel backend %q", cfg.Backend)
	}
}

// Model builds a language model client.
func Model(cfg *config.ModelConfig) (model.Model, error) {
	if cfg == nil {
		return nil, errors.New("model config is required")
	}
	switch cfg.Provider {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Name != "" {
				o.Model = oai.ChatModel(cfg.Name)
			}
			o.APIKey = cfg.APIKey
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Name != "" {
				o.Model = anthropic.Model(cfg.Name)
			}
			o.APIKey = cfg.APIKey
		}), nil
	case "mock":
		name := cfg.Name
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// Orchestrator builds the router.
func Orchestrator(cfg config.OrchestratorConfig, logger logging.Logger) (*orchestrator.Orchestrator, error) {
	opts := []func(o *orchestrator.Options){func(o *orchestrator.Options) {
		o.MaxHops = cfg.MaxHops
		o.Logger = logger
	}}
	switch cfg.Strategy {
	case "", "lexical":
	case "model":
		llm, err := Model(cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		s := orchestrator.NewModelStrategy(llm)
		opts = append(opts, func(o *orchestrator.Options) {
			o.Strategy = s
			if cfg.MaxHops > 1 {
				o.Decider = s
			}
		})
	default:
		return nil, fmt.Errorf("unknown orchestrator strategy %q", cfg.Strategy)
	}
	return orchestrator.New(opts...), nil
}

// Executor builds the executor of one configured worker.
func Executor(cfg config.WorkerConfig, tools *tool.Registry, logger logging.Logger) (core.Executor, error) {
	switch cfg.Kind {
	case "", config.KindStatic:
		return agent.Static(cfg.Name, cfg.Response), nil
	case config.KindEcho:
		return agent.NewFuncAgent(cfg.Name, func(_ context.Context, task core.Task) (string, error) {
			return task.Payload, nil
		}), nil
	case config.KindTool:
		t, ok := tools.Get(cfg.Tool)
		if !ok {
			return nil, fmt.Errorf("worker %s: unknown tool %q", cfg.Name, cfg.Tool)
		}
		return agent.NewToolAgent(cfg.Name, t), nil
	case config.KindModel:
		llm, err := Model(cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("worker %s: %w", cfg.Name, err)
		}
		ts, err := lookupTools(tools, cfg.Tools)
		if err != nil {
			return nil, fmt.Errorf("worker %s: %w", cfg.Name, err)
		}
		return agent.NewModelAgent(cfg.Name, llm, func(o *agent.ModelAgentOptions) {
			if cfg.Instruction != "" {
				o.Instruction = agent.NewInstructionFromTemplate(cfg.Instruction)
			}
			o.Tools = ts
			o.Logger = logger
		}), nil
	case config.KindSequential:
		steps := make([]core.Executor, 0, len(cfg.Steps))
		for _, sc := range cfg.Steps {
			step, err := Executor(sc, tools, logger)
			if err != nil {
				return nil, fmt.Errorf("worker %s: %w", cfg.Name, err)
			}
			steps = append(steps, step)
		}
		return agent.NewSequentialAgent(cfg.Name, steps...), nil
	default:
		return nil, fmt.Errorf("worker %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
}
