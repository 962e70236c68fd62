// Package agent contains core.Executor implementations that worker services
// run for each task. The package focuses on three shapes:
//
//  1. Plain code (FuncAgent)
//  2. A single tool invocation (ToolAgent)
//  3. A model-centric tool-calling agent (ModelAgent)
//
// SequentialAgent chains executors so the result of one becomes the task
// payload of the next.
//
// Every agent is stateless between tasks; the worker service owns the
// lifecycle and reports returned errors as ERROR envelopes.
package agent
