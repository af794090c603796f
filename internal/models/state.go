// Package models defines flow state structures for Styleflow sessions.
package models

// FlowPhase represents where a session's flow state machine currently is.
type FlowPhase string

// Flow phase constants. A flow moves Collecting -> Ready -> Answered; a new
// non-follow-up message after Answered starts a fresh Collecting cycle.
const (
	PhaseCollecting FlowPhase = "COLLECTING"
	PhaseReady      FlowPhase = "READY"
	PhaseAnswered   FlowPhase = "ANSWERED"
)
