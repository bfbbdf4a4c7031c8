package users

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

type Repo interface {
	// ResolveContact returns the user id mapped to a contact, creating the
	// mapping with candidateID when none exists.
	ResolveContact(ctx context.Context, contact, candidateID string) (string, error)
	LookupContact(ctx context.Context, contact string) (string, error)
	ResolveGoogleSub(ctx context.Context, sub, candidateID string) (string, error)
	LookupGoogleSub(ctx context.Context, sub string) (string, error)
	RecordLogin(ctx context.Context, userID string, login Login, at time.Time) error
	GetByID(ctx context.Context, userID string) (User, error)
}
