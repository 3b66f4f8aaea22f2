package service

import (
	"context"

	"github.com/stemsi/assessment-session/internal/client"
	"github.com/stemsi/assessment-session/internal/model"
)

// ShortlistingAPI is the part of the external shortlisting service the
// session depends on. *client.HTTPClient satisfies it.
type ShortlistingAPI interface {
	LoadTest(ctx context.Context, testID string) (*client.TestPayload, error)
	Register(ctx context.Context, testID string, reg model.Registration) error
	SubmitAnswers(ctx context.Context, testID, attemptID string, req client.SubmitRequest) error
	TriggerScoring(ctx context.Context, testID string) error
}

var _ ShortlistingAPI = (*client.HTTPClient)(nil)
