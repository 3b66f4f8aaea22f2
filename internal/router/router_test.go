package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/client"
	"github.com/stemsi/assessment-session/internal/config"
	"github.com/stemsi/assessment-session/internal/handler"
	"github.com/stemsi/assessment-session/internal/model"
	"github.com/stemsi/assessment-session/internal/response"
	"github.com/stemsi/assessment-session/internal/service"
	"github.com/stemsi/assessment-session/internal/store"
	"github.com/stemsi/assessment-session/internal/worker"
)

// upstream imitates the shortlisting service.
type upstream struct {
	mu           sync.Mutex
	loadStatus   int
	submitStatus int
	submits      []client.SubmitRequest
	scoring      int
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tests/{id}/questions", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		status := u.loadStatus
		u.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"success":false,"error":"Test not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"test_info":{"id":"` + r.PathValue("id") + `","name":"Backend Screening"},
			"questions":[{"contestId":1520,"index":"A","name":"Do Not Be Distracted!"},{"contestId":1520,"index":"B"}]}`))
	})
	mux.HandleFunc("POST /api/tests/{id}/register", func(w http.ResponseWriter, r *http.Request) {
		var reg model.Registration
		_ = json.NewDecoder(r.Body).Decode(&reg)
		if reg.JudgeUsername == "ghost" {
			_, _ = w.Write([]byte(`{"success":false,"error":"Codeforces user not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("POST /api/tests/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
		var req client.SubmitRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		u.mu.Lock()
		u.submits = append(u.submits, req)
		status := u.submitStatus
		u.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"success":false,"error":"database unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("POST /api/tests/{id}/fetch-results", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.scoring++
		u.mu.Unlock()
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	return mux
}

func (u *upstream) submitted() []client.SubmitRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]client.SubmitRequest(nil), u.submits...)
}

type testEnv struct {
	router   *gin.Engine
	upstream *upstream
	store    store.SessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	up := &upstream{}
	upstreamServer := httptest.NewServer(up.handler())
	t.Cleanup(upstreamServer.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st := store.NewMemoryStore()
	api := client.NewHTTPClient(upstreamServer.URL+"/api", upstreamServer.Client(), 5*time.Second)
	manager := service.NewSessionManager(api, st, zerolog.Nop())

	proctors := worker.NewProctorSupervisor(ctx, zerolog.Nop())
	t.Cleanup(proctors.Stop)
	manager.OnCreate(func(sess *service.Session) { proctors.Attach(sess) })

	sessions := handler.NewSessionHandler(manager, zerolog.Nop())
	cfg := &config.Config{GinMode: gin.TestMode, RegisterRatePerMinute: 100}
	r := SetupRouter(ctx, &Handlers{
		Session: sessions,
		WS:      handler.NewWSHandler(sessions, proctors, zerolog.Nop(), nil),
	}, cfg)

	return &testEnv{router: r, upstream: up, store: st}
}

type sessionBody struct {
	TestID         string             `json:"test_id"`
	State          model.SessionState `json:"state"`
	SectionIndex   int                `json:"section_index"`
	Answers        map[string]string  `json:"answers"`
	QuestionCount  int                `json:"question_count"`
	ViolationCount int                `json:"violation_count"`
	LastError      string             `json:"last_error"`
}

type envelope struct {
	Data struct {
		Session sessionBody `json:"session"`
		Ignored bool        `json:"ignored"`
	} `json:"data"`
	Error    *response.ErrorBody `json:"error"`
	Metadata response.Metadata   `json:"metadata"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	if env.Metadata.RequestID == "" {
		t.Fatalf("%s %s: expected request id in metadata", method, path)
	}
	return w.Code, env
}

func (e *testEnv) register(t *testing.T) {
	t.Helper()
	code, env := e.do(t, http.MethodPost, "/api/v1/tests/T1/session/register", `{"candidate_email":"a@b.com","codeforces_username":"abc"}`)
	if code != http.StatusOK || env.Data.Session.State != model.SessionStateActive {
		t.Fatalf("register: %d %+v %+v", code, env.Data.Session, env.Error)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", w.Code, w.Body.String())
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/tests/T1/session", "")
	if code != http.StatusOK || body.Data.Session.State != model.SessionStateAwaitingRegistration {
		t.Fatalf("get session: %d %+v", code, body.Data.Session)
	}
	if body.Data.Session.QuestionCount != 2 {
		t.Fatalf("expected 2 questions, got %d", body.Data.Session.QuestionCount)
	}

	code, body = env.do(t, http.MethodPut, "/api/v1/tests/T1/session/answers", `{"section_id":"default","question_index":0,"value":"B"}`)
	if code != http.StatusOK || len(body.Data.Session.Answers) != 0 {
		t.Fatalf("expected answer ignored before registration: %d %+v", code, body.Data.Session)
	}

	env.register(t)

	code, body = env.do(t, http.MethodPut, "/api/v1/tests/T1/session/answers", `{"section_id":"default","question_index":0,"value":"B"}`)
	if code != http.StatusOK || body.Data.Session.Answers["default_0"] != "B" {
		t.Fatalf("set answer: %d %+v", code, body.Data.Session)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/tests/T1/session/navigate", `{"section_index":4}`)
	if code != http.StatusOK || body.Data.Session.SectionIndex != 0 {
		t.Fatalf("navigate should clamp to the only section: %d %+v", code, body.Data.Session)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/tests/T1/session/submit", "")
	if code != http.StatusOK || body.Data.Session.State != model.SessionStateSubmitted {
		t.Fatalf("submit: %d %+v %+v", code, body.Data.Session, body.Error)
	}

	submits := env.upstream.submitted()
	if len(submits) != 1 || submits[0].CandidateEmail != "a@b.com" || submits[0].Answers["default_0"] != "B" {
		t.Fatalf("unexpected upstream submissions %+v", submits)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/tests/T1/session/submit", "")
	if code != http.StatusConflict || body.Error == nil || body.Error.Code != response.ErrInvalidState {
		t.Fatalf("expected resubmit rejected: %d %+v", code, body.Error)
	}
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/tests/T1/session/register", `{"candidate_email":""}`)
	if code != http.StatusBadRequest || body.Error == nil || body.Error.Code != response.ErrValidation {
		t.Fatalf("expected validation error: %d %+v", code, body.Error)
	}
	if body.Error.Fields["codeforces_username"] == "" {
		t.Fatalf("expected field errors, got %v", body.Error.Fields)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/tests/T1/session/register", `{"candidate_email":"a@b.com","codeforces_username":"ghost"}`)
	if code != http.StatusUnprocessableEntity || body.Error == nil || body.Error.Code != response.ErrRegistrationFailed {
		t.Fatalf("expected registration failure: %d %+v", code, body.Error)
	}
	if !strings.Contains(body.Error.Message, "Codeforces user not found") {
		t.Fatalf("expected upstream message surfaced, got %q", body.Error.Message)
	}

	env.register(t)

	code, body = env.do(t, http.MethodPost, "/api/v1/tests/T1/session/register", `{"candidate_email":"a@b.com","codeforces_username":"abc"}`)
	if code != http.StatusConflict || body.Error.Code != response.ErrInvalidState {
		t.Fatalf("expected second registration rejected: %d %+v", code, body.Error)
	}
}

func TestInvalidRequests(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/tests/bad.id/session", "")
	if code != http.StatusBadRequest || body.Error.Code != response.ErrInvalidID {
		t.Fatalf("expected invalid id: %d %+v", code, body.Error)
	}

	env.register(t)

	code, body = env.do(t, http.MethodPut, "/api/v1/tests/T1/session/answers", `{"section_id":"default","question_index":7,"value":"x"}`)
	if code != http.StatusBadRequest || body.Error.Code != response.ErrUnknownQuestion {
		t.Fatalf("expected unknown question: %d %+v", code, body.Error)
	}

	code, body = env.do(t, http.MethodPut, "/api/v1/tests/T1/session/answers", `{"section_id":"default","value":"x"}`)
	if code != http.StatusBadRequest || body.Error.Code != response.ErrValidation {
		t.Fatalf("expected missing index rejected: %d %+v", code, body.Error)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/tests/T1/session/navigate", `{"direction":"sideways"}`)
	if code != http.StatusBadRequest || body.Error.Code != response.ErrValidation {
		t.Fatalf("expected bad direction rejected: %d %+v", code, body.Error)
	}

	code, body = env.do(t, http.MethodPut, "/api/v1/tests/T1/session/answers", `{"section_id":`)
	if code != http.StatusBadRequest || body.Error.Code != response.ErrInvalidPayload {
		t.Fatalf("expected malformed body rejected: %d %+v", code, body.Error)
	}
}

func TestLoadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.loadStatus = http.StatusNotFound

	code, body := env.do(t, http.MethodGet, "/api/v1/tests/T404/session", "")
	if code != http.StatusNotFound || body.Error == nil || body.Error.Code != response.ErrLoadFailed {
		t.Fatalf("expected load failure: %d %+v", code, body.Error)
	}
	if !strings.Contains(body.Error.Message, "Test not found") {
		t.Fatalf("expected upstream message, got %q", body.Error.Message)
	}
}

func TestSubmitFailureRevertsToActive(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	env.upstream.mu.Lock()
	env.upstream.submitStatus = http.StatusInternalServerError
	env.upstream.mu.Unlock()

	code, body := env.do(t, http.MethodPost, "/api/v1/tests/T1/session/submit", "")
	if code != http.StatusBadGateway || body.Error == nil || body.Error.Code != response.ErrSubmissionFailed {
		t.Fatalf("expected submission failure: %d %+v", code, body.Error)
	}

	code, body = env.do(t, http.MethodGet, "/api/v1/tests/T1/session", "")
	if code != http.StatusOK || body.Data.Session.State != model.SessionStateActive {
		t.Fatalf("expected ACTIVE after failure: %d %+v", code, body.Data.Session)
	}
	if !strings.Contains(body.Data.Session.LastError, "database unavailable") {
		t.Fatalf("expected error surfaced, got %q", body.Data.Session.LastError)
	}
	if rec, err := env.store.Get(context.Background(), "T1"); err != nil || rec.Registration == nil {
		t.Fatalf("expected persisted record kept, got %+v %v", rec, err)
	}
}

func TestStreamForcesSubmissionOnFocusLoss(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	server := httptest.NewServer(env.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/v1/tests/T1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first map[string]interface{}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if first["event"] != "state" || first["state"] != string(model.SessionStateActive) {
		t.Fatalf("unexpected initial message %v", first)
	}

	if err := conn.WriteJSON(map[string]interface{}{"action": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{"action": "visibility", "hidden": false}); err != nil {
		t.Fatalf("write visible: %v", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{"action": "visibility", "hidden": true}); err != nil {
		t.Fatalf("write hidden: %v", err)
	}

	var sawPong, sawViolation bool
	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (pong=%v violation=%v)", err, sawPong, sawViolation)
		}
		switch msg["event"] {
		case "pong":
			sawPong = true
		case "violation":
			sawViolation = true
			if msg["tab_switches"] != float64(1) {
				t.Fatalf("expected tab_switches 1, got %v", msg["tab_switches"])
			}
		}
		if msg["event"] == "state" && msg["state"] == string(model.SessionStateSubmitted) {
			break
		}
	}

	if !sawPong || !sawViolation {
		t.Fatalf("expected pong and violation events, got pong=%v violation=%v", sawPong, sawViolation)
	}
	submits := env.upstream.submitted()
	if len(submits) != 1 || submits[0].TabSwitches != 1 {
		t.Fatalf("unexpected upstream submissions %+v", submits)
	}
}
