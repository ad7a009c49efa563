package models

// PhaseIndex identifies a state in the phase controller's state machine.
type PhaseIndex int

const (
	AwaitMrz PhaseIndex = iota
	AwaitPortrait
	AwaitLiveness
	Review
	Submitted
)

// PhaseState is the per-session record carried between HTTP calls,
// since each phase transition of the core arrives as a separate request.
type PhaseState struct {
	SessionID string          `json:"session_id"`
	Phase     PhaseIndex      `json:"phase"`
	Mrz       *MrzRecord      `json:"mrz,omitempty"`
	Portrait  *Portrait       `json:"portrait,omitempty"`
	Liveness  *LivenessResult `json:"liveness,omitempty"`
	Match     *MatchResult    `json:"match,omitempty"`
}
