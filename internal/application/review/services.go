package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skinsight/review-console/internal/application"
	"github.com/skinsight/review-console/internal/domain/ai"
	"github.com/skinsight/review-console/internal/domain/analysis"
	"github.com/skinsight/review-console/internal/domain/operator"
	domain "github.com/skinsight/review-console/internal/domain/review"
)

// RecordLookup resolves one analysis record; unknown ids yield analysis.ErrNotFound.
type RecordLookup interface {
	Lookup(ctx context.Context, id analysis.AnalysisID) (*analysis.Record, error)
}

// VerifiedEvent is published after a successful commit.
type VerifiedEvent struct {
	AnalysisID    analysis.AnalysisID `json:"analysis_id"`
	DetectedIssue string              `json:"detected_issue"`
	Items         int                 `json:"items"`
	VerifiedBy    operator.Identity   `json:"verified_by"`
	VerifiedAt    time.Time           `json:"verified_at"`
}

// Publisher announces verified records to downstream consumers.
type Publisher interface {
	PublishVerified(ctx context.Context, ev VerifiedEvent) error
}

// Observer receives workflow counters (metrics).
type Observer interface {
	SessionOpened()
	SessionClosed(reason string)
	Generation(outcome string)
	Submission(outcome string)
}

type nopObserver struct{}

func (nopObserver) SessionOpened()       {}
func (nopObserver) SessionClosed(string) {}
func (nopObserver) Generation(string)    {}
func (nopObserver) Submission(string)    {}

// Options wires a Service.
type Options struct {
	Records           RecordLookup
	Repo              analysis.Repository
	Generator         ai.DraftGenerator
	Events            Publisher // optional
	Observer          Observer  // optional
	Clock             application.Clock
	Log               zerolog.Logger
	ModelVersion      string
	GenerationTimeout time.Duration
	SessionTTL        time.Duration
}

// Service runs review sessions: it loads a record, seeds a draft from the
// generator, applies operator edits and commits the verified batch.
// Service is safe for concurrent use; each session is single-writer.
type Service struct {
	opts Options

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	byRecord map[analysis.AnalysisID]uuid.UUID
	// records committed by this process, kept a while so an Open racing the
	// commit sees them as reviewed
	verified map[analysis.AnalysisID]time.Time
}

const verifiedMemory = 5 * time.Minute

func NewService(opts Options) *Service {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Clock == nil {
		opts.Clock = application.SystemClock{}
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 90 * time.Second
	}
	return &Service{
		opts:     opts,
		sessions: make(map[uuid.UUID]*session),
		byRecord: make(map[analysis.AnalysisID]uuid.UUID),
		verified: make(map[analysis.AnalysisID]time.Time),
	}
}

//
// ==== SESSION LIFECYCLE ====
//

// Open starts (or resumes) the review of a record.
//
// Unknown records return an error matching domain.ErrNotFound and no session
// is created. Reviewed records are returned as a read-only Verified view built
// from the committed history; the generator is never called for them.
func (s *Service) Open(ctx context.Context, id analysis.AnalysisID, by operator.Identity) (View, error) {
	state := domain.StateLoadingRecord
	rec, err := s.opts.Records.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.opts.Log.Debug().Int64("analysis_id", int64(id)).
				Str("state", string(domain.StateNotFound)).Msg("review target missing")
		}
		return View{}, err
	}

	if rec.IsReviewed {
		return s.reviewedView(ctx, state, *rec)
	}

	s.mu.Lock()
	if _, ok := s.verified[id]; ok {
		// committed after our lookup read it
		s.mu.Unlock()
		rec.IsReviewed = true
		return s.reviewedView(ctx, state, *rec)
	}
	if sid, ok := s.byRecord[id]; ok {
		if existing := s.sessions[sid]; existing != nil {
			s.mu.Unlock()
			existing.mu.Lock()
			existing.touched = s.opts.Clock.Now()
			v := existing.viewLocked()
			existing.mu.Unlock()
			return v, nil
		}
	}

	sess := &session{
		id:        uuid.New(),
		record:    *rec,
		openedBy:  by,
		state:     domain.StateReady,
		generated: make(chan struct{}),
		touched:   s.opts.Clock.Now(),
	}
	genCtx, cancel := context.WithTimeout(context.Background(), s.opts.GenerationTimeout)
	sess.cancelGen = cancel
	_ = sess.moveLocked(domain.StateGeneratingDraft)

	s.sessions[sess.id] = sess
	s.byRecord[id] = sess.id
	s.mu.Unlock()

	s.opts.Observer.SessionOpened()
	s.opts.Log.Info().
		Str("session_id", sess.id.String()).
		Int64("analysis_id", int64(id)).
		Int64("operator_id", by.ID).
		Msg("review session opened")

	go s.loadDraft(genCtx, sess)

	return sess.view(), nil
}

// reviewedView is the read-only view of a committed record.
func (s *Service) reviewedView(ctx context.Context, from domain.State, rec analysis.Record) (View, error) {
	state, err := domain.Transition(from, domain.StateVerified)
	if err != nil {
		return View{}, err
	}
	recs, err := s.opts.Repo.Recommendations(ctx, rec.ID)
	if err != nil {
		return View{}, fmt.Errorf("load committed recommendations: %w", err)
	}
	return View{Record: rec, State: state, Draft: domain.FromStored(recs)}, nil
}

// loadDraft requests the AI draft and seeds the session exactly once. A
// result arriving after the session left GeneratingDraft is dropped.
func (s *Service) loadDraft(ctx context.Context, sess *session) {
	defer sess.cancelGen()

	draft, err := s.opts.Generator.Generate(ctx, sess.record.DetectedIssue, ai.ChoiceAll)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer close(sess.generated)

	if sess.state != domain.StateGeneratingDraft {
		s.opts.Observer.Generation("discarded")
		return
	}
	if err != nil {
		sess.genErr = &domain.GenerationError{Issue: sess.record.DetectedIssue, Err: err}
		s.opts.Observer.Generation("failed")
		s.opts.Log.Warn().Err(err).
			Str("session_id", sess.id.String()).
			Msg("draft generation failed, continuing with manual entry")
	} else if !sess.seeded {
		sess.draft = domain.Seeded(draft)
		sess.seeded = true
		if sess.draft.Empty() {
			s.opts.Observer.Generation("empty")
			s.opts.Log.Warn().Str("session_id", sess.id.String()).Msg("generator returned an empty draft")
		} else {
			s.opts.Observer.Generation("success")
		}
	}
	_ = sess.moveLocked(domain.StateDraftEditable)
}

// Get returns the current snapshot of a session.
func (s *Service) Get(sessionID string) (View, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	return sess.view(), nil
}

// AwaitDraft blocks until generation resolved or ctx is done, then returns
// the snapshot. It lets clients long-poll instead of spinning on Get.
func (s *Service) AwaitDraft(ctx context.Context, sessionID string) (View, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	select {
	case <-sess.generated:
	case <-ctx.Done():
	}
	return sess.view(), nil
}

// Abandon discards the session and its draft; nothing is persisted. An
// outstanding generation request is cancelled and its result ignored.
func (s *Service) Abandon(sessionID string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	return s.abandon(sess, "abandoned")
}

// DiscardRecord abandons the open session of a record, if there is one. It
// fails with ErrInvalidState while that session is submitting.
func (s *Service) DiscardRecord(id analysis.AnalysisID) error {
	s.mu.Lock()
	var sess *session
	if sid, ok := s.byRecord[id]; ok {
		sess = s.sessions[sid]
	}
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	return s.abandon(sess, "discarded")
}

func (s *Service) abandon(sess *session, reason string) error {
	sess.mu.Lock()
	if err := sess.moveLocked(domain.StateAbandoned); err != nil {
		sess.mu.Unlock()
		return err
	}
	sess.cancelGen()
	sess.mu.Unlock()

	s.forget(sess, reason)
	return nil
}

// Sweep abandons sessions idle for longer than the configured TTL and forgets
// old committed ids.
func (s *Service) Sweep(now time.Time) int {
	s.mu.Lock()
	for id, at := range s.verified {
		if now.Sub(at) > verifiedMemory {
			delete(s.verified, id)
		}
	}
	if s.opts.SessionTTL <= 0 {
		s.mu.Unlock()
		return 0
	}
	candidates := make([]*session, 0)
	for _, sess := range s.sessions {
		candidates = append(candidates, sess)
	}
	s.mu.Unlock()

	n := 0
	for _, sess := range candidates {
		sess.mu.Lock()
		expired := now.Sub(sess.touched) > s.opts.SessionTTL &&
			domain.CanTransition(sess.state, domain.StateAbandoned)
		if expired {
			_ = sess.moveLocked(domain.StateAbandoned)
			sess.cancelGen()
		}
		sess.mu.Unlock()
		if expired {
			s.forget(sess, "expired")
			n++
		}
	}
	return n
}

// Run sweeps expired sessions until ctx is done.
func (s *Service) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Sweep(now); n > 0 {
				s.opts.Log.Info().Int("sessions", n).Msg("expired review sessions discarded")
			}
		}
	}
}

// Active is the number of open sessions.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) lookup(sessionID string) (*session, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) forget(sess *session, reason string) {
	s.mu.Lock()
	if _, ok := s.sessions[sess.id]; ok {
		delete(s.sessions, sess.id)
		if s.byRecord[sess.record.ID] == sess.id {
			delete(s.byRecord, sess.record.ID)
		}
		s.opts.Observer.SessionClosed(reason)
	}
	s.mu.Unlock()
	s.opts.Log.Info().Str("session_id", sess.id.String()).Str("reason", reason).Msg("review session closed")
}

//
// ==== REVIEW EDITOR ====
//

func (s *Service) edit(sessionID, op string, fn func(domain.Draft) (domain.Draft, error)) (View, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.state.Require(op, sess.state.CanEdit()); err != nil {
		return sess.viewLocked(), err
	}
	next, err := fn(sess.draft)
	if err != nil {
		return sess.viewLocked(), err
	}
	sess.draft = next
	sess.touched = s.opts.Clock.Now()
	if sess.state == domain.StateSubmitFailed {
		_ = sess.moveLocked(domain.StateDraftEditable)
		sess.submitErr = nil
	}
	return sess.viewLocked(), nil
}

// SetSummary replaces the routine summary.
func (s *Service) SetSummary(sessionID, text string) (View, error) {
	return s.edit(sessionID, "edit summary", func(d domain.Draft) (domain.Draft, error) {
		return d.SetSummary(text), nil
	})
}

// AddItem appends an item to the category sequence. link may be empty.
func (s *Service) AddItem(sessionID string, cat analysis.Category, title, description, link string) (View, error) {
	return s.edit(sessionID, "add item", func(d domain.Draft) (domain.Draft, error) {
		next, err := d.AddItem(cat, title, description)
		if err != nil || link == "" {
			return next, err
		}
		return next.EditItem(cat, next.Len(cat)-1, domain.ItemFields{Link: &link})
	})
}

// EditItem changes an item in place.
func (s *Service) EditItem(sessionID string, cat analysis.Category, index int, f domain.ItemFields) (View, error) {
	return s.edit(sessionID, "edit item", func(d domain.Draft) (domain.Draft, error) {
		return d.EditItem(cat, index, f)
	})
}

// RemoveItem deletes the item at index.
func (s *Service) RemoveItem(sessionID string, cat analysis.Category, index int) (View, error) {
	return s.edit(sessionID, "remove item", func(d domain.Draft) (domain.Draft, error) {
		return d.RemoveItem(cat, index)
	})
}

//
// ==== VERIFICATION COMMITTER ====
//

// VerifyResult is returned after a successful commit.
type VerifyResult struct {
	View  View                          `json:"review"`
	Batch []analysis.RecommendationItem `json:"recommendations"`
}

// Verify flattens the draft and submits it as one batch. On success the
// record is reviewed and the session is discarded. On failure the session
// moves to SubmitFailed with the draft untouched, ready for retry.
func (s *Service) Verify(ctx context.Context, sessionID string, by operator.Identity) (VerifyResult, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return VerifyResult{}, err
	}

	sess.mu.Lock()
	if err := sess.state.Require("verify", sess.state.CanCommit()); err != nil {
		v := sess.viewLocked()
		sess.mu.Unlock()
		return VerifyResult{View: v}, err
	}
	if err := sess.draft.Validate(); err != nil {
		v := sess.viewLocked()
		sess.mu.Unlock()
		return VerifyResult{View: v}, err
	}
	if err := sess.moveLocked(domain.StateSubmitting); err != nil {
		v := sess.viewLocked()
		sess.mu.Unlock()
		return VerifyResult{View: v}, err
	}
	batch := sess.draft.Batch()
	rec := sess.record
	sess.mu.Unlock()

	// Submitting blocks edits and repeated commits, so the lock is not held
	// across the storage round trip.
	submitErr := s.opts.Repo.VerifyBatch(ctx, rec.ID, batch, s.opts.ModelVersion)

	sess.mu.Lock()
	if submitErr != nil {
		sess.submitErr = &domain.SubmissionError{AnalysisID: rec.ID, Err: submitErr}
		_ = sess.moveLocked(domain.StateSubmitFailed)
		v := sess.viewLocked()
		err := sess.submitErr
		sess.mu.Unlock()

		s.opts.Observer.Submission("failed")
		s.opts.Log.Error().Err(submitErr).
			Str("session_id", sess.id.String()).
			Int64("analysis_id", int64(rec.ID)).
			Msg("verification batch rejected")
		return VerifyResult{View: v}, err
	}
	_ = sess.moveLocked(domain.StateVerified)
	sess.submitErr = nil
	sess.record.IsReviewed = true
	v := sess.viewLocked()
	sess.mu.Unlock()

	s.opts.Observer.Submission("success")
	s.markVerified(rec.ID)
	s.forget(sess, "verified")
	s.opts.Log.Info().
		Int64("analysis_id", int64(rec.ID)).
		Int("items", len(batch)).
		Int64("operator_id", by.ID).
		Msg("analysis verified")

	s.publish(ctx, VerifiedEvent{
		AnalysisID:    rec.ID,
		DetectedIssue: rec.DetectedIssue,
		Items:         len(batch),
		VerifiedBy:    by,
		VerifiedAt:    s.opts.Clock.Now(),
	})
	return VerifyResult{View: v, Batch: batch}, nil
}

// LegacyRecommendation is the body of the old single-recommendation endpoint.
type LegacyRecommendation struct {
	Recommendation string
	Type           analysis.Category
	Link           string
}

// VerifySingle serves the deprecated single-recommendation path by turning it
// into a batch of at most one item and committing it through the same
// repository contract. It refuses records that have an open review session.
func (s *Service) VerifySingle(ctx context.Context, id analysis.AnalysisID, in LegacyRecommendation, by operator.Identity) ([]analysis.RecommendationItem, error) {
	rec, err := s.opts.Records.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.IsReviewed {
		return nil, analysis.ErrAlreadyReviewed
	}
	s.mu.Lock()
	_, busy := s.byRecord[id]
	s.mu.Unlock()
	if busy {
		return nil, fmt.Errorf("%w: analysis %d has an open review session", domain.ErrInvalidState, id)
	}

	batch := []analysis.RecommendationItem{}
	if strings.TrimSpace(in.Recommendation) != "" {
		typ := in.Type
		if !typ.Valid() {
			typ = analysis.CategoryRemedy
		}
		batch = append(batch, analysis.RecommendationItem{
			Title:       "Expert Advice for " + rec.DetectedIssue,
			Description: in.Recommendation,
			Type:        typ,
			Link:        in.Link,
		})
	}
	if err := s.opts.Repo.VerifyBatch(ctx, id, batch, s.opts.ModelVersion); err != nil {
		s.opts.Observer.Submission("failed")
		return nil, &domain.SubmissionError{AnalysisID: id, Err: err}
	}
	s.opts.Observer.Submission("success")
	s.markVerified(id)
	// a session opened while the commit was in flight can never verify
	if err := s.DiscardRecord(id); err != nil {
		s.opts.Log.Warn().Err(err).Int64("analysis_id", int64(id)).Msg("discard session of verified record")
	}
	s.opts.Log.Warn().Int64("analysis_id", int64(id)).Msg("analysis verified through deprecated single-recommendation path")
	s.publish(ctx, VerifiedEvent{
		AnalysisID:    id,
		DetectedIssue: rec.DetectedIssue,
		Items:         len(batch),
		VerifiedBy:    by,
		VerifiedAt:    s.opts.Clock.Now(),
	})
	return batch, nil
}

func (s *Service) markVerified(id analysis.AnalysisID) {
	s.mu.Lock()
	s.verified[id] = s.opts.Clock.Now()
	s.mu.Unlock()
}

func (s *Service) publish(ctx context.Context, ev VerifiedEvent) {
	if s.opts.Events == nil {
		return
	}
	// the commit already happened; a lost event must not fail the request
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.opts.Events.PublishVerified(pubCtx, ev); err != nil {
		s.opts.Log.Error().Err(err).Int64("analysis_id", int64(ev.AnalysisID)).Msg("publish verified event")
	}
}
