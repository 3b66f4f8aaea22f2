package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/model"
	"github.com/stemsi/assessment-session/internal/service"
)

// feedBuffer bounds the focus events queued for one session.
const feedBuffer = 64

// FocusSource delivers visibility changes reported by the candidate's surface.
type FocusSource interface {
	Events() <-chan model.FocusEvent
}

// FocusFeed is an in-process FocusSource. Transports publish into it.
type FocusFeed struct {
	events chan model.FocusEvent
}

// NewFocusFeed creates an empty FocusFeed.
func NewFocusFeed() *FocusFeed {
	return &FocusFeed{events: make(chan model.FocusEvent, feedBuffer)}
}

// Events implements FocusSource.
func (f *FocusFeed) Events() <-chan model.FocusEvent { return f.events }

// Publish queues ev without blocking. It reports false when the feed is full.
func (f *FocusFeed) Publish(ev model.FocusEvent) bool {
	select {
	case f.events <- ev:
		return true
	default:
		return false
	}
}

// ProctoredSession is what the proctor needs from a session.
type ProctoredSession interface {
	TestID() string
	RecordViolation(ctx context.Context) (count int, recorded bool, err error)
	BeginSubmit(trigger model.SubmitTrigger) (*service.Submission, error)
}

// ProctorWorker turns focus-lost events into violations and forced submissions.
type ProctorWorker struct {
	session ProctoredSession
	source  FocusSource
	log     zerolog.Logger
	runs    sync.WaitGroup
}

// NewProctorWorker creates a new ProctorWorker.
func NewProctorWorker(sess ProctoredSession, source FocusSource, log zerolog.Logger) *ProctorWorker {
	return &ProctorWorker{
		session: sess,
		source:  source,
		log:     log.With().Str("component", "proctor_worker").Str("test_id", sess.TestID()).Logger(),
	}
}

// Start consumes the focus source until ctx is done or the source closes.
// Call in a goroutine. It returns after in-flight submissions finish.
func (w *ProctorWorker) Start(ctx context.Context) {
	w.log.Debug().Msg("Proctor started")
	defer w.log.Debug().Msg("Proctor stopped")
	defer w.runs.Wait()

	events := w.source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleBurst(ctx, w.drain(events, ev))
		}
	}
}

// drain collects first plus everything already queued behind it.
func (w *ProctorWorker) drain(events <-chan model.FocusEvent, first model.FocusEvent) []model.FocusEvent {
	burst := []model.FocusEvent{first}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return burst
			}
			burst = append(burst, ev)
		default:
			return burst
		}
	}
}

// handleBurst counts every focus loss in the burst and then requests one
// submission carrying the final count.
func (w *ProctorWorker) handleBurst(ctx context.Context, burst []model.FocusEvent) {
	last := 0
	for _, ev := range burst {
		if !ev.Hidden {
			continue
		}
		count, recorded, err := w.session.RecordViolation(ctx)
		if err != nil {
			w.log.Error().Err(err).Int("tab_switches", count).Msg("Violation not persisted")
		}
		if !recorded {
			continue
		}
		w.log.Warn().Int("tab_switches", count).Time("reported_at", ev.ReportedAt).Msg("Focus lost")
		last = count
	}
	if last == 0 {
		return
	}

	sub, err := w.session.BeginSubmit(model.ProctoringTrigger(last))
	switch {
	case errors.Is(err, service.ErrSubmissionInFlight), errors.Is(err, service.ErrInvalidState):
		w.log.Debug().Err(err).Msg("Forced submission skipped")
		return
	case err != nil:
		w.log.Error().Err(err).Msg("Forced submission not started")
		return
	}

	w.log.Info().Str("attempt_id", sub.AttemptID()).Int("tab_switches", last).Msg("Forcing submission")
	w.runs.Add(1)
	go func() {
		defer w.runs.Done()
		if err := sub.Run(ctx); err != nil {
			w.log.Error().Err(err).Str("attempt_id", sub.AttemptID()).Msg("Forced submission failed")
		}
	}()
}

// ProctorSupervisor runs one ProctorWorker per session.
type ProctorSupervisor struct {
	parent context.Context
	log    zerolog.Logger

	mu      sync.Mutex
	workers map[string]*proctorEntry
	wg      sync.WaitGroup
}

type proctorEntry struct {
	feed   *FocusFeed
	cancel context.CancelFunc
}

// NewProctorSupervisor creates a supervisor whose workers stop with ctx.
func NewProctorSupervisor(ctx context.Context, log zerolog.Logger) *ProctorSupervisor {
	return &ProctorSupervisor{
		parent:  ctx,
		log:     log,
		workers: make(map[string]*proctorEntry),
	}
}

// Attach starts a proctor for sess, replacing any previous one for the same test.
func (s *ProctorSupervisor) Attach(sess ProctoredSession) *FocusFeed {
	feed := NewFocusFeed()
	ctx, cancel := context.WithCancel(s.parent)
	w := NewProctorWorker(sess, feed, s.log)

	s.mu.Lock()
	if prev, ok := s.workers[sess.TestID()]; ok {
		prev.cancel()
	}
	s.workers[sess.TestID()] = &proctorEntry{feed: feed, cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.Start(ctx)
	}()
	return feed
}

// Feed returns the focus feed of the proctor attached to testID.
func (s *ProctorSupervisor) Feed(testID string) (*FocusFeed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.workers[testID]
	if !ok {
		return nil, false
	}
	return e.feed, true
}

// Stop cancels every proctor and waits for them and their submissions.
func (s *ProctorSupervisor) Stop() {
	s.mu.Lock()
	for _, e := range s.workers {
		e.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info().Msg("Proctors stopped")
}
