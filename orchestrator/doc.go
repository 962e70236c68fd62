// Package orchestrator decides which worker handles a task.
//
// Route is a pure decision over its inputs: given a task and the registered
// worker descriptors it returns a RoutingDecision, never mutating the
// descriptors. The choice itself is delegated to a Strategy:
//
//   - LexicalStrategy (default) scores word overlap between the task and each
//     worker's name and description
//   - ModelStrategy asks a language model to call a transfer_to_agent tool
//
// After a worker answered, Next lets a Decider either finish with an answer
// or delegate to another worker. Delegation is bounded by MaxHops.
package orchestrator
