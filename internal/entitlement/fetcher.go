// Package entitlement resolves the effective plan record for a session.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/aura-detect/aura/internal/models"
)

var (
	// ErrNoSession is returned when a profile is requested without a session.
	ErrNoSession = errors.New("no session")

	// ErrAccountDeleted marks the terminal condition: the session is valid
	// but the profile row is gone. Retrying cannot succeed; the caller must
	// force sign-out.
	ErrAccountDeleted = errors.New("account deleted")
)

// ProfileReader is the data-store boundary. Zero rows is (nil, nil).
type ProfileReader interface {
	FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error)
}

// Fetcher classifies profile reads into three outcomes: a profile,
// ErrAccountDeleted, or a transient error. Deletion is derived from a null
// row only, never from a failed read; a transient failure must not destroy
// a valid session.
type Fetcher struct {
	reader ProfileReader
}

func NewFetcher(reader ProfileReader) *Fetcher {
	return &Fetcher{reader: reader}
}

// FetchProfile returns the profile for the session. A transient error keeps
// the session intact and may be retried; ErrAccountDeleted must not be.
func (f *Fetcher) FetchProfile(ctx context.Context, sess *models.Session) (*models.Profile, error) {
	if sess == nil || sess.AccessToken == "" {
		return nil, ErrNoSession
	}

	profile, err := f.reader.FetchProfile(ctx, sess.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if profile == nil {
		return nil, ErrAccountDeleted
	}
	return profile, nil
}

// IsDeleted reports whether err is the deleted-account condition.
func IsDeleted(err error) bool {
	return errors.Is(err, ErrAccountDeleted)
}
