// Package model defines the provider-agnostic abstractions for talking to
// language models from taskmesh executors and routing strategies.
//
// Core goals:
//   - One Generate call shape for every provider
//   - Normalized tool / function call representation (ToolDefinition, ToolCall)
//   - Request / response shapes that stay transport independent
//   - Lightweight scripted mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic) implement Model so agents and the
// orchestrator stay decoupled from vendor SDKs.
package model
