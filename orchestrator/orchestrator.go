package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// Options configures an Orchestrator.
type Options struct {
	Strategy Strategy
	Decider  Decider
	// MaxHops bounds how many workers one submission may be dispatched to.
	// Values below 1 are treated as 1.
	MaxHops int
	Logger  logging.Logger
}

// Step is the outcome of Next.
type Step struct {
	Done     bool
	Answer   string
	Decision core.RoutingDecision
	Input    string
}

// Orchestrator is the router consulted by the control plane.
type Orchestrator struct {
	strategy Strategy
	decider  Decider
	maxHops  int
	logger   logging.Logger
}

// New creates an orchestrator with the lexical strategy, single-hop decider
// and MaxHops 1 unless overridden.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Strategy: NewLexicalStrategy(),
		Decider:  SingleHop{},
		MaxHops:  1,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxHops < 1 {
		opts.MaxHops = 1
	}
	return &Orchestrator{
		strategy: opts.Strategy,
		decider:  opts.Decider,
		maxHops:  opts.MaxHops,
		logger:   logging.ForComponent(opts.Logger, "orchestrator"),
	}
}

// MaxHops returns the configured hop bound.
func (o *Orchestrator) MaxHops() int { return o.maxHops }

// Route picks the worker for task. It fails with core.ErrNoWorkersAvailable
// when candidates is empty. The strategy sees a copy of candidates.
func (o *Orchestrator) Route(ctx context.Context, task core.Task, candidates []core.WorkerDescriptor) (core.RoutingDecision, error) {
	start := time.Now()
	if len(candidates) == 0 {
		logging.Routing(o.logger, o.strategy.Name(), "", 0, time.Since(start), core.ErrNoWorkersAvailable)
		return core.RoutingDecision{}, core.ErrNoWorkersAvailable
	}

	view := append([]core.WorkerDescriptor(nil), candidates...)
	idx, err := o.strategy.Select(ctx, task.Payload, view)
	if err == nil && (idx < 0 || idx >= len(candidates)) {
		err = fmt.Errorf("strategy %s selected index %d of %d candidates", o.strategy.Name(), idx, len(candidates))
	}
	if err != nil {
		logging.Routing(o.logger, o.strategy.Name(), "", len(candidates), time.Since(start), err)
		return core.RoutingDecision{}, err
	}

	chosen := candidates[idx].Normalize()
	logging.Routing(o.logger, o.strategy.Name(), chosen.Name, len(candidates), time.Since(start), nil)
	return core.RoutingDecision{CorrelationID: task.ID, Worker: chosen.Name, Topic: chosen.Topic}, nil
}

// Next is consulted after hop workers have answered. It either finishes the
// submission or returns a decision for a fresh hop with a new correlation id.
// Delegating past MaxHops fails with core.ErrMaxHopsExceeded.
func (o *Orchestrator) Next(ctx context.Context, conv *core.Conversation, candidates []core.WorkerDescriptor, hop int) (Step, error) {
	if len(candidates) == 0 {
		return Step{}, core.ErrNoWorkersAvailable
	}

	view := append([]core.WorkerDescriptor(nil), candidates...)
	v, err := o.decider.Decide(ctx, conv, view)
	if err != nil {
		return Step{}, err
	}
	if v.Finish {
		return Step{Done: true, Answer: v.Answer}, nil
	}
	if hop >= o.maxHops {
		return Step{}, fmt.Errorf("%w: %d of %d hops used", core.ErrMaxHopsExceeded, hop, o.maxHops)
	}
	if v.Worker < 0 || v.Worker >= len(candidates) {
		return Step{}, fmt.Errorf("decider selected index %d of %d candidates", v.Worker, len(candidates))
	}

	chosen := candidates[v.Worker].Normalize()
	input := v.Input
	if input == "" {
		input = conv.Task()
	}
	o.logger.Info("orchestrator.delegate", "task_id", conv.TaskID, "worker", chosen.Name, "hop", hop)

	return Step{
		Decision: core.RoutingDecision{CorrelationID: core.NewID(), Worker: chosen.Name, Topic: chosen.Topic},
		Input:    input,
	}, nil
}
