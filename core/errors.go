package core

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrChannelClosed is returned by publish/subscribe after channel shutdown.
	ErrChannelClosed = errors.New("channel closed")

	// ErrNoWorkersAvailable is returned when routing is attempted without candidates.
	ErrNoWorkersAvailable = errors.New("no workers available")

	// ErrMaxHopsExceeded is returned when multi-hop delegation does not converge.
	ErrMaxHopsExceeded = errors.New("max hops exceeded")

	// ErrUnrecognizedCorrelation marks a reply whose correlation id matches no
	// pending submission. It is only ever logged.
	ErrUnrecognizedCorrelation = errors.New("unrecognized correlation id")

	// ErrReplyTimeout is returned when no reply arrives within the configured timeout.
	ErrReplyTimeout = errors.New("reply timeout")
)

// ExecutionError carries a worker failure. Message is the worker's error text,
// preserved verbatim from the ERROR envelope.
type ExecutionError struct {
	Worker  string
	Message string
}

func (e *ExecutionError) Error() string {
	if e.Worker == "" {
		return e.Message
	}
	return fmt.Sprintf("worker %s: %s", e.Worker, e.Message)
}

// NewExecutionError creates an ExecutionError.
func NewExecutionError(worker, message string) *ExecutionError {
	return &ExecutionError{Worker: worker, Message: message}
}

// Stage names the part of a submission that failed.
type Stage string

const (
	StageRouting   Stage = "routing"
	StageDispatch  Stage = "dispatch"
	StageExecution Stage = "execution"
	StageTimeout   Stage = "timeout"
)

// SubmissionError is the typed failure returned for a FAILED submission.
type SubmissionError struct {
	TaskID string
	Stage  Stage
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("task %s failed during %s: %v", e.TaskID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *SubmissionError) Unwrap() error { return e.Err }

// NewSubmissionError creates a SubmissionError.
func NewSubmissionError(taskID string, stage Stage, err error) error {
	return &SubmissionError{TaskID: taskID, Stage: stage, Err: err}
}

// StageOf returns the failed stage if err is (or wraps) a SubmissionError.
func StageOf(err error) (Stage, bool) {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Stage, true
	}
	return "", false
}

// PanicError is a recovered panic converted to an error.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic recovered: %v", p.Value) }

// NewPanicError captures the current stack for a recovered value.
func NewPanicError(r any) *PanicError { return &PanicError{Value: r, Stack: debug.Stack()} }
