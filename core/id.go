package core

import "github.com/google/uuid"

// NewID generates a new unique identifier used for task correlation ids and
// per-instance reply topics.
func NewID() string { return uuid.NewString() }
