// Package controlplane implements the coordinator that accepts task
// submissions and drives each one to completion:
//
//	SUBMITTED --route--> ROUTED --publish TASK--> AWAITING_REPLY
//	AWAITING_REPLY --RESULT--> COMPLETED
//	AWAITING_REPLY --ERROR--> FAILED
//	SUBMITTED/ROUTED --routing or publish failure--> FAILED
//	AWAITING_REPLY --delegate--> ROUTED (multi-hop)
//
// Submit is synchronous for the caller; internally the control plane
// publishes TASK envelopes and correlates RESULT / ERROR envelopes arriving
// on its reply topic by correlation id.
package controlplane
