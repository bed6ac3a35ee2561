package review

import "fmt"

// State of one review workflow.
type State string

const (
	StateLoadingRecord   State = "loading_record"
	StateNotFound        State = "not_found"
	StateReady           State = "ready"
	StateGeneratingDraft State = "generating_draft"
	StateDraftEditable   State = "draft_editable"
	StateSubmitting      State = "submitting"
	StateVerified        State = "verified"
	StateSubmitFailed    State = "submit_failed"
	StateAbandoned       State = "abandoned"
)

var transitions = map[State][]State{
	StateLoadingRecord:   {StateNotFound, StateReady, StateVerified, StateAbandoned},
	StateReady:           {StateGeneratingDraft, StateAbandoned},
	StateGeneratingDraft: {StateDraftEditable, StateAbandoned},
	StateDraftEditable:   {StateSubmitting, StateAbandoned},
	StateSubmitting:      {StateVerified, StateSubmitFailed},
	StateSubmitFailed:    {StateDraftEditable, StateSubmitting, StateAbandoned},
}

// CanTransition reports whether the machine allows from → to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns to, or an ErrInvalidState error.
func Transition(from, to State) (State, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}
	return to, nil
}

// CanEdit: draft mutations are only legal once generation has resolved and
// while no submission is outstanding.
func (s State) CanEdit() bool {
	return s == StateDraftEditable || s == StateSubmitFailed
}

// CanCommit mirrors CanEdit; Submitting is excluded so repeated commits are refused.
func (s State) CanCommit() bool {
	return s == StateDraftEditable || s == StateSubmitFailed
}

// Terminal states end the session.
func (s State) Terminal() bool {
	return s == StateNotFound || s == StateVerified || s == StateAbandoned
}

// Require returns an ErrInvalidState error unless ok.
func (s State) Require(op string, ok bool) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, s)
}
