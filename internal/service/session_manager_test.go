package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/model"
	"github.com/stemsi/assessment-session/internal/store"
)

func TestOpenSharesOneLoad(t *testing.T) {
	api := newFakeAPI()
	m := NewSessionManager(api, store.NewMemoryStore(), zerolog.Nop())

	var created int
	m.OnCreate(func(*Session) { created++ })

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := m.Open(context.Background(), "T1")
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	for _, sess := range sessions[1:] {
		if sess != sessions[0] {
			t.Fatal("expected the same session for every caller")
		}
	}
	if api.loadCalls != 1 || created != 1 {
		t.Fatalf("expected one load and one create, got %d and %d", api.loadCalls, created)
	}
	if got := sessions[0].State(); got != model.SessionStateAwaitingRegistration {
		t.Fatalf("expected AWAITING_REGISTRATION, got %s", got)
	}
}

func TestOpenReplacesFailedSession(t *testing.T) {
	api := newFakeAPI()
	api.loadErr = errors.New("unreachable")
	m := NewSessionManager(api, store.NewMemoryStore(), zerolog.Nop())

	first, err := m.Open(context.Background(), "T1")
	var lerr *LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LoadError, got %v", err)
	}

	api.mu.Lock()
	api.loadErr = nil
	api.mu.Unlock()

	second, err := m.Open(context.Background(), "T1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if second == first {
		t.Fatal("expected a fresh session after a load failure")
	}
	if got, ok := m.Get("T1"); !ok || got != second {
		t.Fatal("expected the fresh session to be registered")
	}
}

func TestOpenKeepsSubmittedSession(t *testing.T) {
	api := newFakeAPI()
	m := NewSessionManager(api, store.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	sess, err := m.Open(ctx, "T1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := sess.Register(ctx, model.RegistrationRequest{CandidateEmail: "a@b.com", JudgeUsername: "abc"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := sess.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	again, err := m.Open(ctx, "T1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again != sess || again.State() != model.SessionStateSubmitted {
		t.Fatal("expected the submitted session to be kept")
	}
}

func TestFailedLoadsAreNotRetained(t *testing.T) {
	api := newFakeAPI()
	api.loadErr = errors.New("test not found")
	m := NewSessionManager(api, store.NewMemoryStore(), zerolog.Nop())

	var created int
	m.OnCreate(func(*Session) { created++ })

	for i := 0; i < 200; i++ {
		testID := fmt.Sprintf("unknown-%d", i)
		sess, err := m.Open(context.Background(), testID)
		if err == nil {
			t.Fatalf("expected load failure for %s", testID)
		}
		if sess.State() != model.SessionStateLoadError {
			t.Fatalf("expected LOAD_ERROR, got %s", sess.State())
		}
		if _, ok := m.Get(testID); ok {
			t.Fatalf("expected %s not to be retained", testID)
		}
	}

	if n := m.Len(); n != 0 {
		t.Fatalf("expected no hosted sessions, got %d", n)
	}
	if created != 0 {
		t.Fatalf("expected no creation hooks for failed loads, got %d", created)
	}
}
