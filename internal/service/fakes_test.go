package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stemsi/assessment-session/internal/client"
	"github.com/stemsi/assessment-session/internal/model"
)

const legacyQuestions = `[
	{"contestId": 1520, "index": "A", "name": "Do Not Be Distracted!", "rating": 800, "tags": ["brute force"]},
	{"contestId": 1520, "index": "B", "name": "Ordinary Numbers"}
]`

// fakeAPI records calls and returns configured results.
type fakeAPI struct {
	mu sync.Mutex

	questions   string
	loadErr     error
	registerErr error
	submitErr   error
	scoringErr  error

	loadCalls     int
	registrations []model.Registration
	submits       []client.SubmitRequest
	attemptIDs    []string
	scoringCalls  int

	// submitStarted receives once per SubmitAnswers call when set.
	submitStarted chan struct{}
	// submitGate blocks SubmitAnswers until closed when set.
	submitGate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{questions: legacyQuestions}
}

func (f *fakeAPI) LoadTest(_ context.Context, testID string) (*client.TestPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &client.TestPayload{
		Info:      model.TestInfo{ID: testID, Name: "Test " + testID, Description: "Technical Assessment Test"},
		Questions: json.RawMessage(f.questions),
	}, nil
}

func (f *fakeAPI) Register(_ context.Context, _ string, reg model.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations = append(f.registrations, reg)
	return f.registerErr
}

func (f *fakeAPI) SubmitAnswers(_ context.Context, _ string, attemptID string, req client.SubmitRequest) error {
	f.mu.Lock()
	f.submits = append(f.submits, req)
	f.attemptIDs = append(f.attemptIDs, attemptID)
	started, gate, err := f.submitStarted, f.submitGate, f.submitErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeAPI) TriggerScoring(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoringCalls++
	return f.scoringErr
}

func (f *fakeAPI) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func (f *fakeAPI) setSubmitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
