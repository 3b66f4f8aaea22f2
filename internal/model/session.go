package model

import "time"

// SessionState enumerates the states of a candidate assessment session.
type SessionState string

const (
	SessionStateLoading              SessionState = "LOADING"
	SessionStateLoadError            SessionState = "LOAD_ERROR"
	SessionStateAwaitingRegistration SessionState = "AWAITING_REGISTRATION"
	SessionStateActive               SessionState = "ACTIVE"
	SessionStateSubmitting           SessionState = "SUBMITTING"
	SessionStateSubmitted            SessionState = "SUBMITTED"
)

// Registration identifies the candidate taking the assessment.
type Registration struct {
	CandidateEmail string `json:"candidate_email"`
	JudgeUsername  string `json:"codeforces_username"`
}

// RegistrationRequest is the payload submitted from the registration gate.
type RegistrationRequest struct {
	CandidateEmail string `json:"candidate_email" binding:"required,max=254"`
	JudgeUsername  string `json:"codeforces_username" binding:"required,max=64"`
}

// ProctoringState tracks focus-loss violations and the session clock.
type ProctoringState struct {
	ViolationCount int       `json:"violation_count"`
	StartedAt      time.Time `json:"started_at"`
}

// ElapsedSeconds returns whole seconds since the session started.
func (p ProctoringState) ElapsedSeconds(now time.Time) int64 {
	if p.StartedAt.IsZero() {
		return 0
	}
	d := now.Sub(p.StartedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// SessionRecord is everything the session store keeps for one test.
type SessionRecord struct {
	StartedAt      time.Time     `json:"started_at"`
	ViolationCount int           `json:"violation_count"`
	Registration   *Registration `json:"registration,omitempty"`
}

// TriggerSource identifies who asked for a submission.
type TriggerSource string

const (
	TriggerManual     TriggerSource = "MANUAL"
	TriggerProctoring TriggerSource = "PROCTORING"
)

// SubmitTrigger carries the violation count to report with a submission.
// The session overwrites the count when the submission guard is taken, so
// every violation recorded before SUBMITTING is reported. It is never re-read.
type SubmitTrigger struct {
	Source         TriggerSource
	ViolationCount int
}

// ManualTrigger builds a trigger for a candidate-initiated submission.
func ManualTrigger() SubmitTrigger {
	return SubmitTrigger{Source: TriggerManual}
}

// ProctoringTrigger builds a trigger for a forced submission.
func ProctoringTrigger(count int) SubmitTrigger {
	return SubmitTrigger{Source: TriggerProctoring, ViolationCount: count}
}

// FocusEvent is a visibility change reported by the candidate's surface.
type FocusEvent struct {
	Hidden     bool
	ReportedAt time.Time
}

// SetAnswerRequest is the payload for recording one answer.
type SetAnswerRequest struct {
	SectionID     string `json:"section_id" binding:"required,max=64"`
	QuestionIndex *int   `json:"question_index" binding:"required,min=0"`
	Value         string `json:"value" binding:"max=65536"`
}

// NavigateRequest moves to a section by index or by direction.
type NavigateRequest struct {
	SectionIndex *int   `json:"section_index" binding:"required_without=Direction"`
	Direction    string `json:"direction" binding:"omitempty,oneof=next previous"`
}
