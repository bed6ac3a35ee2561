package review

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skinsight/review-console/internal/domain/analysis"
	"github.com/skinsight/review-console/internal/domain/operator"
	domain "github.com/skinsight/review-console/internal/domain/review"
)

// session owns the draft of one record under review. All fields are guarded
// by mu; the service never hands out the draft itself, only copies.
type session struct {
	mu sync.Mutex

	id       uuid.UUID
	record   analysis.Record
	openedBy operator.Identity
	state    domain.State
	draft    domain.Draft
	seeded   bool

	genErr    error
	submitErr error

	cancelGen context.CancelFunc
	generated chan struct{} // closed once generation resolved
	touched   time.Time
}

// View is the externally visible snapshot of a review.
type View struct {
	SessionID       string            `json:"session_id,omitempty"`
	Record          analysis.Record   `json:"record"`
	OpenedBy        operator.Identity `json:"opened_by"`
	State           domain.State      `json:"state"`
	Draft           domain.Draft      `json:"draft"`
	GenerationError string            `json:"generation_error,omitempty"`
	SubmissionError string            `json:"submission_error,omitempty"`
	CanEdit         bool              `json:"can_edit"`
	CanCommit       bool              `json:"can_commit"`
}

// viewLocked must be called with mu held.
func (s *session) viewLocked() View {
	v := View{
		SessionID: s.id.String(),
		Record:    s.record,
		OpenedBy:  s.openedBy,
		State:     s.state,
		Draft:     s.draft.Clone(),
		CanEdit:   s.state.CanEdit(),
		CanCommit: s.state.CanCommit(),
	}
	if s.genErr != nil {
		v.GenerationError = s.genErr.Error()
	}
	if s.submitErr != nil {
		v.SubmissionError = s.submitErr.Error()
	}
	return v
}

func (s *session) view() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// moveLocked applies a state machine transition; mu must be held.
func (s *session) moveLocked(to domain.State) error {
	next, err := domain.Transition(s.state, to)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}
