package core

import (
	"fmt"
	"time"
)

// Kind classifies an envelope.
type Kind string

const (
	// KindTask carries a task from the control plane to a worker.
	KindTask Kind = "TASK"
	// KindResult carries a successful worker result back to the reply topic.
	KindResult Kind = "RESULT"
	// KindError carries a worker failure description back to the reply topic.
	KindError Kind = "ERROR"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTask, KindResult, KindError:
		return true
	default:
		return false
	}
}

// Envelope is the unit of transport on a message channel. Network backends
// serialize it with the JSON tags below; that schema is stable.
//
// Every TASK envelope eventually produces exactly one RESULT or ERROR envelope
// carrying the same CorrelationID.
type Envelope struct {
	CorrelationID string    `json:"correlation_id"`
	Source        string    `json:"source_topic"`
	Destination   string    `json:"destination_topic"`
	Kind          Kind      `json:"kind"`
	Payload       string    `json:"payload"`
	Hop           int       `json:"hop,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
}

// NewTaskEnvelope addresses a task to a worker topic; replies go to replyTopic.
func NewTaskEnvelope(task Task, replyTopic, workerTopic string, hop int) Envelope {
	return Envelope{
		CorrelationID: task.ID,
		Source:        replyTopic,
		Destination:   workerTopic,
		Kind:          KindTask,
		Payload:       task.Payload,
		Hop:           hop,
		Timestamp:     time.Now().UTC(),
	}
}

// Reply builds the RESULT (err == nil) or ERROR envelope answering a TASK
// envelope. The reply is addressed to the task's source topic and keeps its
// correlation id and hop.
func (e Envelope) Reply(from, result string, err error) Envelope {
	r := Envelope{
		CorrelationID: e.CorrelationID,
		Source:        from,
		Destination:   e.Source,
		Kind:          KindResult,
		Payload:       result,
		Hop:           e.Hop,
		Timestamp:     time.Now().UTC(),
	}
	if err != nil {
		r.Kind = KindError
		r.Payload = err.Error()
	}
	return r
}

// Validate checks the fields every envelope must carry.
func (e Envelope) Validate() error {
	if e.CorrelationID == "" {
		return fmt.Errorf("envelope: missing correlation id")
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("envelope: invalid kind %q", e.Kind)
	}
	if e.Kind == KindTask && e.Source == "" {
		return fmt.Errorf("envelope: task %s has no reply topic", e.CorrelationID)
	}
	return nil
}
