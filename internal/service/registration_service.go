package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/model"
	"github.com/stemsi/assessment-session/internal/store"
	"github.com/stemsi/assessment-session/internal/validator"
)

// RegistrationService handles the candidate registration gate.
type RegistrationService struct {
	api   ShortlistingAPI
	store store.SessionStore
	log   zerolog.Logger
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(api ShortlistingAPI, st store.SessionStore, log zerolog.Logger) *RegistrationService {
	return &RegistrationService{
		api:   api,
		store: st,
		log:   log.With().Str("component", "registration_service").Logger(),
	}
}

// Register validates the request, registers the candidate with the
// shortlisting service and stores the registration alongside rec.
//
// Nothing is persisted when validation or the remote call fails. A store
// failure after a successful remote registration is logged and does not fail
// the call: the candidate is registered upstream and may proceed.
func (s *RegistrationService) Register(ctx context.Context, testID string, req model.RegistrationRequest, rec model.SessionRecord) (*model.Registration, error) {
	req.CandidateEmail = strings.TrimSpace(req.CandidateEmail)
	req.JudgeUsername = strings.TrimSpace(req.JudgeUsername)

	if fields := validator.Struct(&req); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	reg := model.Registration{
		CandidateEmail: req.CandidateEmail,
		JudgeUsername:  req.JudgeUsername,
	}

	if err := s.api.Register(ctx, testID, reg); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Registration rejected")
		return nil, &RegistrationError{Err: err}
	}

	rec.Registration = &reg
	if err := s.store.Set(ctx, testID, rec); err != nil {
		s.log.Error().Err(err).Str("test_id", testID).Msg("Failed to persist registration")
	}

	s.log.Info().Str("test_id", testID).Str("candidate_email", reg.CandidateEmail).Msg("Candidate registered")
	return &reg, nil
}

// restoreRecord reads the persisted record, treating a missing record as empty.
func restoreRecord(ctx context.Context, st store.SessionStore, testID string) (model.SessionRecord, bool, error) {
	rec, err := st.Get(ctx, testID)
	if errors.Is(err, store.ErrNotFound) {
		return model.SessionRecord{}, false, nil
	}
	if err != nil {
		return model.SessionRecord{}, false, fmt.Errorf("get session record: %w", err)
	}
	return *rec, true, nil
}
