package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/model"
	"github.com/stemsi/assessment-session/internal/store"
)

// SessionEventType identifies a notification pushed to session subscribers.
type SessionEventType string

const (
	SessionEventState     SessionEventType = "state"
	SessionEventViolation SessionEventType = "violation"
)

// SessionEvent is published on every state transition and recorded violation.
type SessionEvent struct {
	Type           SessionEventType
	State          model.SessionState
	ViolationCount int
	Message        string
}

// SessionView is an immutable snapshot of a session for the UI.
type SessionView struct {
	TestID         string                `json:"test_id"`
	State          model.SessionState    `json:"state"`
	Test           *model.TestDefinition `json:"test,omitempty"`
	SectionIndex   int                   `json:"section_index"`
	SectionName    string                `json:"section_name,omitempty"`
	Answers        model.AnswerMap       `json:"answers"`
	AnsweredCount  int                   `json:"answered_count"`
	QuestionCount  int                   `json:"question_count"`
	ViolationCount int                   `json:"violation_count"`
	ElapsedSeconds int64                 `json:"elapsed_seconds"`
	Registration   *model.Registration   `json:"registration,omitempty"`
	LastError      string                `json:"last_error,omitempty"`
}

// submissionSnapshot is what phase 1 needs, captured when SUBMITTING is entered.
type submissionSnapshot struct {
	candidateEmail string
	answers        map[string]string
	startedAt      time.Time
	violations     int
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithClock replaces the wall clock used for start time and elapsed time.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// Session is the state machine of one candidate assessment session.
// All mutation goes through its methods; fields are never touched directly.
type Session struct {
	testID      string
	api         ShortlistingAPI
	store       store.SessionStore
	registrar   *RegistrationService
	coordinator *SubmissionCoordinator
	log         zerolog.Logger
	now         func() time.Time

	mu           sync.Mutex
	state        model.SessionState
	loadStarted  bool
	registering  bool
	test         *model.TestDefinition
	sectionIndex int
	answers      model.AnswerMap
	proctoring   model.ProctoringState
	registration *model.Registration
	finishedAt   time.Time
	lastError    string
	loadErr      error
	ready        chan struct{}

	subMu       sync.Mutex
	subscribers map[int]chan SessionEvent
	nextSubID   int
}

// NewSession creates a session in LOADING for testID. Call Load next.
func NewSession(testID string, api ShortlistingAPI, st store.SessionStore, log zerolog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		testID:      testID,
		api:         api,
		store:       st,
		log:         log.With().Str("component", "session").Str("test_id", testID).Logger(),
		now:         time.Now,
		state:       model.SessionStateLoading,
		answers:     make(model.AnswerMap),
		ready:       make(chan struct{}),
		subscribers: make(map[int]chan SessionEvent),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registrar = NewRegistrationService(api, st, log)
	s.coordinator = NewSubmissionCoordinator(api, st, log, s.now)
	return s
}

// TestID returns the test identifier the session is scoped to.
func (s *Session) TestID() string { return s.testID }

// Ready is closed once Load has finished, successfully or not.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// State returns the current state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadErr returns the *LoadError that moved the session to LOAD_ERROR, if any.
func (s *Session) LoadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// ViolationCount returns the current violation count.
func (s *Session) ViolationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proctoring.ViolationCount
}

// Load fetches the test and restores any persisted registration and
// proctoring state. The start time is created and persisted when absent.
// A failure moves the session to LOAD_ERROR, which is terminal.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != model.SessionStateLoading || s.loadStarted {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.loadStarted = true
	s.mu.Unlock()
	defer close(s.ready)

	ctx = context.WithoutCancel(ctx)

	payload, err := s.api.LoadTest(ctx, s.testID)
	if err != nil {
		return s.failLoad(err)
	}

	rec, found, err := restoreRecord(ctx, s.store, s.testID)
	if err != nil {
		return s.failLoad(err)
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = s.now()
		if err := s.store.Set(ctx, s.testID, rec); err != nil {
			return s.failLoad(fmt.Errorf("persist start time: %w", err))
		}
	}

	test := &model.TestDefinition{
		Info:     payload.Info,
		Sections: NormalizeQuestions(payload.Questions),
	}

	s.mu.Lock()
	s.test = test
	s.proctoring = model.ProctoringState{
		ViolationCount: rec.ViolationCount,
		StartedAt:      rec.StartedAt,
	}
	s.registration = rec.Registration
	if s.registration != nil {
		s.state = model.SessionStateActive
	} else {
		s.state = model.SessionStateAwaitingRegistration
	}
	state := s.state
	s.mu.Unlock()

	s.log.Info().
		Str("state", string(state)).
		Bool("restored", found).
		Int("sections", len(test.Sections)).
		Int("questions", test.QuestionCount()).
		Msg("Test loaded")
	s.publish(SessionEvent{Type: SessionEventState, State: state})
	return nil
}

func (s *Session) failLoad(cause error) error {
	lerr := &LoadError{Err: cause}

	s.mu.Lock()
	s.state = model.SessionStateLoadError
	s.lastError = lerr.Error()
	s.loadErr = lerr
	s.mu.Unlock()

	s.log.Error().Err(cause).Msg("Failed to load test")
	s.publish(SessionEvent{Type: SessionEventState, State: model.SessionStateLoadError, Message: lerr.Error()})
	return lerr
}

// Register submits the registration gate. On success the session becomes ACTIVE.
func (s *Session) Register(ctx context.Context, req model.RegistrationRequest) (*model.Registration, error) {
	s.mu.Lock()
	if s.state != model.SessionStateAwaitingRegistration || s.registering {
		s.mu.Unlock()
		return nil, ErrInvalidState
	}
	s.registering = true
	rec := model.SessionRecord{
		StartedAt:      s.proctoring.StartedAt,
		ViolationCount: s.proctoring.ViolationCount,
	}
	s.mu.Unlock()

	reg, err := s.registrar.Register(context.WithoutCancel(ctx), s.testID, req, rec)

	s.mu.Lock()
	s.registering = false
	if err != nil {
		s.lastError = err.Error()
		s.mu.Unlock()
		return nil, err
	}
	s.registration = reg
	s.lastError = ""
	s.state = model.SessionStateActive
	s.mu.Unlock()

	s.publish(SessionEvent{Type: SessionEventState, State: model.SessionStateActive})
	return reg, nil
}

// SetAnswer stores value under key. Outside ACTIVE it is a no-op.
// No validation of the value shape is performed.
func (s *Session) SetAnswer(key model.AnswerKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.SessionStateActive {
		return nil
	}
	if !s.hasQuestionLocked(key) {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, key)
	}
	s.answers[key] = value
	return nil
}

func (s *Session) hasQuestionLocked(key model.AnswerKey) bool {
	for _, sec := range s.test.Sections {
		if sec.ID == key.SectionID {
			return key.Index >= 0 && key.Index < len(sec.Questions)
		}
	}
	return false
}

// Navigate moves to sectionIndex, clamped to the valid range.
// Outside ACTIVE it is a no-op.
func (s *Session) Navigate(sectionIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigateLocked(sectionIndex)
}

// Next moves to the following section, if any.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigateLocked(s.sectionIndex + 1)
}

// Previous moves to the preceding section, if any.
func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigateLocked(s.sectionIndex - 1)
}

func (s *Session) navigateLocked(i int) {
	if s.state != model.SessionStateActive {
		return
	}
	last := len(s.test.Sections) - 1
	if i > last {
		i = last
	}
	if i < 0 {
		i = 0
	}
	s.sectionIndex = i
}

// Submit runs a manual submission.
// It returns ErrSubmissionInFlight when another submission holds the guard.
func (s *Session) Submit(ctx context.Context) error {
	sub, err := s.BeginSubmit(model.ManualTrigger())
	if err != nil {
		return err
	}
	return sub.Run(ctx)
}

// BeginSubmit takes the in-flight guard and moves the session to SUBMITTING.
// The returned Submission performs the network phases when Run is called.
func (s *Session) BeginSubmit(trigger model.SubmitTrigger) (*Submission, error) {
	return s.coordinator.Begin(s, trigger)
}

// RecordViolation counts one focus loss and persists the new count before
// returning. Outside ACTIVE nothing is recorded and recorded is false.
// A store failure is returned but the in-memory count is kept.
func (s *Session) RecordViolation(ctx context.Context) (count int, recorded bool, err error) {
	s.mu.Lock()
	if s.state != model.SessionStateActive {
		s.mu.Unlock()
		return 0, false, nil
	}
	s.proctoring.ViolationCount++
	count = s.proctoring.ViolationCount
	rec := model.SessionRecord{
		StartedAt:      s.proctoring.StartedAt,
		ViolationCount: count,
		Registration:   s.registration,
	}
	err = s.store.Set(ctx, s.testID, rec)
	s.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("persist violation count: %w", err)
	}
	s.publish(SessionEvent{
		Type:           SessionEventViolation,
		State:          model.SessionStateActive,
		ViolationCount: count,
		Message:        "Focus loss detected. This attempt will be submitted automatically.",
	})
	return count, true, err
}

// View returns a snapshot of the session.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.now()
	if !s.finishedAt.IsZero() {
		end = s.finishedAt
	}

	v := SessionView{
		TestID:         s.testID,
		State:          s.state,
		Test:           s.test,
		SectionIndex:   s.sectionIndex,
		Answers:        s.answers.Clone(),
		AnsweredCount:  len(s.answers),
		ViolationCount: s.proctoring.ViolationCount,
		ElapsedSeconds: s.proctoring.ElapsedSeconds(end),
		LastError:      s.lastError,
	}
	if s.registration != nil {
		reg := *s.registration
		v.Registration = &reg
	}
	if s.test != nil {
		v.QuestionCount = s.test.QuestionCount()
		if s.sectionIndex < len(s.test.Sections) {
			v.SectionName = s.test.Sections[s.sectionIndex].DisplayName(s.sectionIndex)
		}
	}
	return v
}

// Subscribe registers for session events. The returned function
// unsubscribes and closes the channel. Slow subscribers miss events.
func (s *Session) Subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 16)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) publish(ev SessionEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.log.Debug().Str("event", string(ev.Type)).Msg("Subscriber full, event dropped")
		}
	}
}

// beginSubmit moves ACTIVE to SUBMITTING and snapshots what phase 1 sends,
// including the violation count at the moment of the transition.
func (s *Session) beginSubmit() (submissionSnapshot, error) {
	s.mu.Lock()
	if s.state != model.SessionStateActive || s.registration == nil {
		s.mu.Unlock()
		return submissionSnapshot{}, ErrInvalidState
	}
	s.state = model.SessionStateSubmitting
	s.lastError = ""
	snap := submissionSnapshot{
		candidateEmail: s.registration.CandidateEmail,
		answers:        s.answers.Wire(),
		startedAt:      s.proctoring.StartedAt,
		violations:     s.proctoring.ViolationCount,
	}
	s.mu.Unlock()

	s.publish(SessionEvent{Type: SessionEventState, State: model.SessionStateSubmitting})
	return snap, nil
}

// abortSubmit reverts SUBMITTING to ACTIVE after a phase-1 failure.
// Answers and the violation count are left untouched.
func (s *Session) abortSubmit(cause error) {
	s.mu.Lock()
	s.state = model.SessionStateActive
	s.lastError = cause.Error()
	s.mu.Unlock()

	s.publish(SessionEvent{Type: SessionEventState, State: model.SessionStateActive, Message: cause.Error()})
}

// completeSubmit marks the session SUBMITTED. It is terminal.
func (s *Session) completeSubmit() {
	s.mu.Lock()
	s.state = model.SessionStateSubmitted
	s.finishedAt = s.now()
	s.mu.Unlock()

	s.publish(SessionEvent{Type: SessionEventState, State: model.SessionStateSubmitted})
}
