package handler

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/model"
	"github.com/stemsi/assessment-session/internal/response"
	"github.com/stemsi/assessment-session/internal/service"
	ws "github.com/stemsi/assessment-session/internal/websocket"
	"github.com/stemsi/assessment-session/internal/worker"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// FocusFeeds looks up the focus feed of a session's proctor.
type FocusFeeds interface {
	Feed(testID string) (*worker.FocusFeed, bool)
}

// WSHandler streams focus events in and session events out.
type WSHandler struct {
	sessions *SessionHandler
	feeds    FocusFeeds
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *SessionHandler, feeds FocusFeeds, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		feeds:    feeds,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/tests/:test_id/stream
// The candidate surface reports visibility changes; the server pushes state
// transitions and violation warnings.
func (h *WSHandler) SessionStream(c *gin.Context) {
	sess := h.sessions.openSession(c)
	if sess == nil {
		return
	}

	feed, ok := h.feeds.Feed(sess.TestID())
	if !ok {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrProctorUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("test_id", sess.TestID()).Logger()
	wsLog.Info().Msg("Candidate connected")

	// gorilla/websocket allows one concurrent writer.
	var writeMu sync.Mutex
	write := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteTyped(conn, v)
	}

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	view := sess.View()
	if err := write(ws.StateResponse{Event: ws.EventState, State: view.State, Message: view.LastError}); err != nil {
		return
	}

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for ev := range events {
			if err := write(toWire(ev)); err != nil {
				wsLog.Debug().Err(err).Msg("Event write failed")
				return
			}
		}
	}()

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionVisibility:
			if !msg.Hidden {
				continue
			}
			if !feed.Publish(model.FocusEvent{Hidden: true, ReportedAt: time.Now()}) {
				wsLog.Warn().Msg("Focus feed full, event dropped")
			}
		case ws.ActionPing:
			_ = write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = write(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)})
		}
	}

	unsubscribe()
	<-forwarded
}

func toWire(ev service.SessionEvent) interface{} {
	if ev.Type == service.SessionEventViolation {
		return ws.ViolationResponse{
			Event:       ws.EventViolation,
			TabSwitches: ev.ViolationCount,
			Message:     ev.Message,
		}
	}
	return ws.StateResponse{Event: ws.EventState, State: ev.State, Message: ev.Message}
}
