package handler

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/client"
	"github.com/stemsi/assessment-session/internal/model"
	"github.com/stemsi/assessment-session/internal/response"
	"github.com/stemsi/assessment-session/internal/service"
	"github.com/stemsi/assessment-session/internal/validator"
)

// testIDPattern bounds test identifiers to what is safe in store keys and upstream paths.
var testIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SessionHandler handles the candidate session endpoints.
type SessionHandler struct {
	manager *service.SessionManager
	log     zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(manager *service.SessionManager, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		log:     log.With().Str("component", "session_handler").Logger(),
	}
}

// openSession resolves :test_id and returns the loaded session.
// It writes the error response itself and returns nil on failure.
func (h *SessionHandler) openSession(c *gin.Context) *service.Session {
	testID := c.Param("test_id")
	if !testIDPattern.MatchString(testID) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil
	}

	sess, err := h.manager.Open(c.Request.Context(), testID)
	if err != nil {
		h.writeError(c, err)
		return nil
	}
	return sess
}

// bindJSON decodes and validates the body into dst, writing the error
// response itself on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	fields := validator.Bind(c, dst)
	if fields == nil {
		return true
	}
	code := response.ErrValidation
	if validator.Malformed(fields) {
		code = response.ErrInvalidPayload
	}
	response.FailWithFields(c, http.StatusBadRequest, code, fields)
	return false
}

// GetSession godoc
// GET /api/v1/tests/:test_id/session
// Loads the test on first access and returns the current session view.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess := h.openSession(c)
	if sess == nil {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.View()})
}

// Register godoc
// POST /api/v1/tests/:test_id/session/register
// Registers the candidate and unlocks the questions.
func (h *SessionHandler) Register(c *gin.Context) {
	var req model.RegistrationRequest
	if !bindJSON(c, &req) {
		return
	}

	sess := h.openSession(c)
	if sess == nil {
		return
	}

	if _, err := sess.Register(c.Request.Context(), req); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.View()})
}

// SetAnswer godoc
// PUT /api/v1/tests/:test_id/session/answers
// Records the answer for one question. Ignored unless the session is active.
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	var req model.SetAnswerRequest
	if !bindJSON(c, &req) {
		return
	}

	sess := h.openSession(c)
	if sess == nil {
		return
	}

	key := model.AnswerKey{SectionID: req.SectionID, Index: *req.QuestionIndex}
	if err := sess.SetAnswer(key, req.Value); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.View()})
}

// Navigate godoc
// POST /api/v1/tests/:test_id/session/navigate
// Moves to a section by index (clamped) or by direction.
func (h *SessionHandler) Navigate(c *gin.Context) {
	var req model.NavigateRequest
	if !bindJSON(c, &req) {
		return
	}

	sess := h.openSession(c)
	if sess == nil {
		return
	}

	switch req.Direction {
	case "next":
		sess.Next()
	case "previous":
		sess.Previous()
	default:
		sess.Navigate(*req.SectionIndex)
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.View()})
}

// Submit godoc
// POST /api/v1/tests/:test_id/session/submit
// Submits the attempt. A request made while another submission is in flight
// is acknowledged with 202 and otherwise ignored.
func (h *SessionHandler) Submit(c *gin.Context) {
	sess := h.openSession(c)
	if sess == nil {
		return
	}

	err := sess.Submit(c.Request.Context())
	if errors.Is(err, service.ErrSubmissionInFlight) {
		response.Success(c, http.StatusAccepted, gin.H{"session": sess.View(), "ignored": true})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.View()})
}

// writeError maps session errors to API error responses.
func (h *SessionHandler) writeError(c *gin.Context, err error) {
	var (
		verr *service.ValidationError
		lerr *service.LoadError
		rerr *service.RegistrationError
		serr *service.SubmissionError
	)

	switch {
	case errors.As(err, &verr):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, verr.Fields)
	case errors.As(err, &lerr):
		response.FailWithMessage(c, upstreamStatus(err), response.ErrLoadFailed, lerr.Error())
	case errors.As(err, &rerr):
		status := http.StatusUnprocessableEntity
		if errors.Is(err, client.ErrServiceUnavailable) {
			status = http.StatusBadGateway
		}
		response.FailWithMessage(c, status, response.ErrRegistrationFailed, rerr.Error())
	case errors.As(err, &serr):
		response.FailWithMessage(c, http.StatusBadGateway, response.ErrSubmissionFailed, serr.Error())
	case errors.Is(err, service.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, service.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled session error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// upstreamStatus reports 404 when the shortlisting service does not know the test.
func upstreamStatus(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
