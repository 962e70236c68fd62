package controlplane

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// submission tracks one Submit call.
type submission struct {
	task  core.Task
	state core.RunState
}

// Submit runs text to completion and returns the final answer. Failures are
// *core.SubmissionError values naming the failed stage; worker failures wrap
// a *core.ExecutionError carrying the worker's message verbatim.
func (cp *ControlPlane) Submit(ctx context.Context, text string) (string, error) {
	cp.mu.Lock()
	running, done := cp.running, cp.done
	cp.mu.Unlock()
	if !running {
		return "", ErrNotStarted
	}

	s := &submission{task: core.NewTask(text)}
	cp.transition(s, core.StateSubmitted)
	cp.logger.Info("controlplane.task.submitted", "task_id", s.task.ID)

	candidates := cp.Workers()
	decision, err := cp.orch.Route(ctx, s.task, candidates)
	if err != nil {
		return "", cp.fail(s, core.StageRouting, err)
	}

	limiter := core.NewHopLimiter(cp.orch.MaxHops())
	conv := core.NewConversation(s.task)
	hopTask := s.task

	for hop := 0; ; hop++ {
		cp.transition(s, core.StateRouted)
		if err := limiter.Increment(); err != nil {
			return "", cp.fail(s, core.StageRouting, err)
		}

		reply, stage, err := cp.dispatch(ctx, s, hopTask, decision, hop, done)
		if err != nil {
			return "", cp.fail(s, stage, err)
		}
		if reply.Kind == core.KindError {
			return "", cp.fail(s, core.StageExecution, core.NewExecutionError(decision.Worker, reply.Payload))
		}
		conv.Append(decision.Worker, reply.Payload)

		step, err := cp.orch.Next(ctx, conv, candidates, hop+1)
		if err != nil {
			return "", cp.fail(s, core.StageRouting, err)
		}
		if step.Done {
			cp.transition(s, core.StateCompleted)
			cp.logger.Info("controlplane.task.completed", "task_id", s.task.ID, "hops", hop+1)
			return step.Answer, nil
		}

		decision = step.Decision
		hopTask = core.Task{ID: decision.CorrelationID, Payload: step.Input, CreatedAt: time.Now().UTC()}
	}
}

// dispatch publishes one TASK envelope and waits for its reply.
func (cp *ControlPlane) dispatch(
	ctx context.Context,
	s *submission,
	task core.Task,
	decision core.RoutingDecision,
	hop int,
	done <-chan struct{},
) (core.Envelope, core.Stage, error) {
	// Register before publishing so a fast reply always finds its entry.
	replyCh := make(chan core.Envelope, 1)
	cp.mu.Lock()
	cp.pending[task.ID] = replyCh
	cp.mu.Unlock()
	defer cp.forget(task.ID)

	env := core.NewTaskEnvelope(task, cp.replyTopic, decision.Topic, hop)
	if err := cp.ch.Publish(ctx, decision.Topic, env); err != nil {
		return core.Envelope{}, core.StageDispatch, fmt.Errorf("publish to %s: %w", decision.Topic, err)
	}
	logging.Dispatch(cp.logger, task.ID, string(core.KindTask), decision.Topic, hop)
	cp.transition(s, core.StateAwaitingReply)

	var timeout <-chan time.Time
	if cp.replyTimeout > 0 {
		timer := time.NewTimer(cp.replyTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case reply := <-replyCh:
		return reply, "", nil
	case <-timeout:
		return core.Envelope{}, core.StageTimeout, fmt.Errorf("%w after %s from %s", core.ErrReplyTimeout, cp.replyTimeout, decision.Worker)
	case <-ctx.Done():
		return core.Envelope{}, core.StageTimeout, ctx.Err()
	case <-done:
		return core.Envelope{}, core.StageDispatch, core.ErrChannelClosed
	}
}

// forget removes a pending entry; later replies are dropped as unrecognized.
func (cp *ControlPlane) forget(id string) {
	cp.mu.Lock()
	delete(cp.pending, id)
	cp.mu.Unlock()
}

func (cp *ControlPlane) fail(s *submission, stage core.Stage, err error) error {
	cp.transition(s, core.StateFailed)
	subErr := core.NewSubmissionError(s.task.ID, stage, err)
	level := cp.logger.Error
	if errors.Is(err, context.Canceled) {
		level = cp.logger.Warn
	}
	level("controlplane.task.failed", "task_id", s.task.ID, "stage", string(stage), "error", err.Error())
	return subErr
}

func (cp *ControlPlane) transition(s *submission, to core.RunState) {
	from := s.state
	if from != "" && !core.CanTransition(from, to) {
		cp.logger.Error("controlplane.transition.invalid", "task_id", s.task.ID, "from", string(from), "to", string(to))
		return
	}
	s.state = to
	cp.logger.Debug("controlplane.task.transition", "task_id", s.task.ID, "from", string(from), "to", string(to))
	if cp.onTransition != nil {
		cp.onTransition(s.task.ID, from, to)
	}
}
