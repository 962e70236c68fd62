// Package worker implements the Worker Service: a named capability bound to
// one channel topic. A service consumes TASK envelopes from its topic, runs
// its executor for each task and publishes exactly one RESULT or ERROR
// envelope to the task's reply topic.
package worker
