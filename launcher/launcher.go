// Package launcher drives the lifecycle of one taskmesh run: it starts the
// channel, the control plane and every worker, submits a single task and
// tears everything down again on every exit path.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/channel"
	"github.com/hupe1980/taskmesh/controlplane"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// ErrAlreadyLaunched is returned when a Launcher is used twice.
var ErrAlreadyLaunched = errors.New("launcher already used")

// Worker is the lifecycle surface the launcher needs from a worker service.
type Worker interface {
	Descriptor() core.WorkerDescriptor
	Start(ctx context.Context) error
	Stop() error
}

// Options configures a Launcher.
type Options struct {
	Logger logging.Logger
}

// Launcher runs one submission end to end. It is single use.
type Launcher struct {
	ch      channel.Channel
	cp      *controlplane.ControlPlane
	workers []Worker
	logger  logging.Logger

	mu       sync.Mutex
	launched bool
}

// New creates a launcher for the given participants.
func New(ch channel.Channel, cp *controlplane.ControlPlane, workers []Worker, optFns ...func(o *Options)) *Launcher {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Launcher{
		ch:      ch,
		cp:      cp,
		workers: append([]Worker(nil), workers...),
		logger:  logging.ForComponent(opts.Logger, "launcher"),
	}
}

// LaunchSingle starts every participant, submits text and returns the
// result. Workers, control plane and channel are always shut down before it
// returns; teardown failures are joined into the returned error.
func (l *Launcher) LaunchSingle(ctx context.Context, text string) (result string, err error) {
	l.mu.Lock()
	if l.launched {
		l.mu.Unlock()
		return "", ErrAlreadyLaunched
	}
	l.launched = true
	l.mu.Unlock()

	start := time.Now()
	var started []Worker
	cpStarted := false

	defer func() {
		if tErr := l.teardown(started, cpStarted); tErr != nil {
			err = errors.Join(err, tErr)
		}
		if err != nil {
			l.logger.Error("launcher.finished", "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
			return
		}
		l.logger.Info("launcher.finished", "duration_ms", time.Since(start).Milliseconds())
	}()

	if err := l.ch.Start(ctx); err != nil {
		return "", fmt.Errorf("start channel: %w", err)
	}

	descs := make([]core.WorkerDescriptor, 0, len(l.workers))
	for _, w := range l.workers {
		descs = append(descs, w.Descriptor())
	}
	if err := l.cp.Register(descs...); err != nil {
		return "", fmt.Errorf("register workers: %w", err)
	}
	if err := l.cp.Start(ctx); err != nil {
		return "", fmt.Errorf("start control plane: %w", err)
	}
	cpStarted = true

	for _, w := range l.workers {
		if err := w.Start(ctx); err != nil {
			return "", fmt.Errorf("start worker %s: %w", w.Descriptor().Name, err)
		}
		started = append(started, w)
	}
	l.logger.Info("launcher.started", "workers", len(started), "reply_topic", l.cp.ReplyTopic())

	return l.cp.Submit(ctx, text)
}

// teardown stops workers in reverse start order, then the control plane,
// then closes the channel. The channel is closed even when Start failed.
func (l *Launcher) teardown(started []Worker, cpStarted bool) error {
	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop worker %s: %w", started[i].Descriptor().Name, err))
		}
	}
	if cpStarted {
		if err := l.cp.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop control plane: %w", err))
		}
	}
	if err := l.ch.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	return errors.Join(errs...)
}
