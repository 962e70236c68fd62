package core

import "time"

// Task is an opaque unit of work submitted to the control plane. It is
// immutable once created; ID doubles as the correlation id of the TASK
// envelope that carries it.
type Task struct {
	ID        string    `json:"id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTask creates a task with a fresh correlation id.
func NewTask(payload string) Task {
	return Task{ID: NewID(), Payload: payload, CreatedAt: time.Now().UTC()}
}

// TaskFromEnvelope reconstructs the task carried by a TASK envelope.
func TaskFromEnvelope(env Envelope) Task {
	return Task{ID: env.CorrelationID, Payload: env.Payload, CreatedAt: env.Timestamp}
}
