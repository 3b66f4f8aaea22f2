package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/client"
	"github.com/stemsi/assessment-session/internal/model"
	"github.com/stemsi/assessment-session/internal/store"
)

// SubmissionCoordinator runs the two-phase submission protocol for one
// session and guarantees at most one submission is in flight.
type SubmissionCoordinator struct {
	api      ShortlistingAPI
	store    store.SessionStore
	log      zerolog.Logger
	now      func() time.Time
	inFlight atomic.Bool
}

// NewSubmissionCoordinator creates a new SubmissionCoordinator.
func NewSubmissionCoordinator(api ShortlistingAPI, st store.SessionStore, log zerolog.Logger, now func() time.Time) *SubmissionCoordinator {
	if now == nil {
		now = time.Now
	}
	return &SubmissionCoordinator{
		api:   api,
		store: st,
		log:   log.With().Str("component", "submission_coordinator").Logger(),
		now:   now,
	}
}

// InFlight reports whether a submission currently holds the guard.
func (c *SubmissionCoordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Begin takes the guard and moves sess to SUBMITTING without suspending.
// A second caller gets ErrSubmissionInFlight regardless of trigger source.
func (c *SubmissionCoordinator) Begin(sess *Session, trigger model.SubmitTrigger) (*Submission, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.log.Debug().
			Str("test_id", sess.TestID()).
			Str("trigger", string(trigger.Source)).
			Msg("Submission already in flight, request ignored")
		return nil, ErrSubmissionInFlight
	}

	snap, err := sess.beginSubmit()
	if err != nil {
		c.inFlight.Store(false)
		return nil, err
	}
	trigger.ViolationCount = snap.violations

	return &Submission{
		coordinator: c,
		session:     sess,
		trigger:     trigger,
		snapshot:    snap,
		attemptID:   uuid.NewString(),
	}, nil
}

// Submission is one attempt that has passed the guard.
type Submission struct {
	coordinator *SubmissionCoordinator
	session     *Session
	trigger     model.SubmitTrigger
	snapshot    submissionSnapshot
	attemptID   string
	ran         atomic.Bool
}

// AttemptID identifies the attempt in logs and upstream requests.
func (sub *Submission) AttemptID() string { return sub.attemptID }

// Trigger returns the trigger the attempt was started with.
func (sub *Submission) Trigger() model.SubmitTrigger { return sub.trigger }

// Run performs phase 1 (record answers) and phase 2 (trigger scoring).
// Only a phase-1 failure is returned; the session is then back in ACTIVE.
// The calls are detached from ctx cancellation and bounded by the client timeout.
func (sub *Submission) Run(ctx context.Context) error {
	if !sub.ran.CompareAndSwap(false, true) {
		return ErrInvalidState
	}

	c := sub.coordinator
	defer c.inFlight.Store(false)

	ctx = context.WithoutCancel(ctx)
	testID := sub.session.TestID()
	log := c.log.With().
		Str("test_id", testID).
		Str("attempt_id", sub.attemptID).
		Str("trigger", string(sub.trigger.Source)).
		Int("tab_switches", sub.trigger.ViolationCount).
		Logger()

	clock := model.ProctoringState{StartedAt: sub.snapshot.startedAt}
	req := client.SubmitRequest{
		CandidateEmail: sub.snapshot.candidateEmail,
		Answers:        sub.snapshot.answers,
		TabSwitches:    sub.trigger.ViolationCount,
		TimeTaken:      clock.ElapsedSeconds(c.now()),
	}

	if err := c.api.SubmitAnswers(ctx, testID, sub.attemptID, req); err != nil {
		serr := &SubmissionError{Err: err}
		sub.session.abortSubmit(serr)
		log.Error().Err(err).Msg("Submission failed, session reverted to active")
		return serr
	}
	log.Info().Int("answers", len(req.Answers)).Int64("time_taken", req.TimeTaken).Msg("Answers recorded")

	if err := c.api.TriggerScoring(ctx, testID); err != nil {
		log.Warn().Err(err).Msg("Scoring trigger failed")
	}

	if err := c.store.Clear(ctx, testID); err != nil {
		log.Error().Err(err).Msg("Failed to clear session record")
	}

	sub.session.completeSubmit()
	log.Info().Msg("Session submitted")
	return nil
}
