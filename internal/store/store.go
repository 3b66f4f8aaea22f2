// Package store persists the parts of an assessment session that must survive
// a reload: start time, violation count and the candidate registration.
package store

import (
	"context"
	"errors"

	"github.com/stemsi/assessment-session/internal/model"
)

// ErrNotFound is returned by Get when nothing is stored for the test.
var ErrNotFound = errors.New("session record not found")

// SessionStore is the durable key-value capability scoped by test identifier.
type SessionStore interface {
	Get(ctx context.Context, testID string) (*model.SessionRecord, error)
	Set(ctx context.Context, testID string, rec model.SessionRecord) error
	Clear(ctx context.Context, testID string) error
}
