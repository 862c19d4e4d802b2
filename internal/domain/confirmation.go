package domain

import "time"

// Decision is the resolved answer to a confirmation request.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
	DecisionTimedOut Decision = "timed_out"
)

// Approved reports whether execution may proceed.
func (d Decision) Approved() bool {
	return d == DecisionApproved
}

// ConfirmationState tracks a pending confirmation through its lifecycle.
type ConfirmationState string

const (
	ConfirmationPending  ConfirmationState = "pending"
	ConfirmationApproved ConfirmationState = "approved"
	ConfirmationDenied   ConfirmationState = "denied"
	ConfirmationTimedOut ConfirmationState = "timed_out"
)

var confirmationTransitions = map[ConfirmationState][]ConfirmationState{
	ConfirmationPending: {ConfirmationApproved, ConfirmationDenied, ConfirmationTimedOut},
}

// CanTransitionTo checks if a state transition is valid. Only pending requests move.
func (s ConfirmationState) CanTransitionTo(next ConfirmationState) bool {
	for _, allowed := range confirmationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StateFor maps a decision onto its terminal state.
func StateFor(d Decision) ConfirmationState {
	switch d {
	case DecisionApproved:
		return ConfirmationApproved
	case DecisionTimedOut:
		return ConfirmationTimedOut
	default:
		return ConfirmationDenied
	}
}

// ConfirmationRequest is the pending-decision handle presented to a decision source.
type ConfirmationRequest struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	ToolCalls  []ToolCall     `json:"tool_calls"`
	Assessment RiskAssessment `json:"assessment"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}
