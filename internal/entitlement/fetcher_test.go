package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aura-detect/aura/internal/models"
)

type fakeReader struct {
	profile *models.Profile
	err     error
}

func (f *fakeReader) FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	return f.profile, f.err
}

func validSession() *models.Session {
	return &models.Session{
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        models.User{ID: "u1"},
	}
}

// Requirement: zero rows for a valid session is the deleted-account outcome,
// a read failure is transient, and the two are never conflated.
func TestFetcher_FetchProfile(t *testing.T) {
	premium := &models.Profile{Plan: models.PlanPremium, RequestCount: 42, StripeCustomerID: "cus_123"}

	tests := []struct {
		name        string
		session     *models.Session
		reader      *fakeReader
		wantProfile bool
		wantDeleted bool
		wantErr     bool
	}{
		{
			name:        "profile found",
			session:     validSession(),
			reader:      &fakeReader{profile: premium},
			wantProfile: true,
		},
		{
			name:        "zero rows classifies as deleted account",
			session:     validSession(),
			reader:      &fakeReader{},
			wantDeleted: true,
			wantErr:     true,
		},
		{
			name:    "read failure classifies as transient",
			session: validSession(),
			reader:  &fakeReader{err: errors.New("dial tcp: timeout")},
			wantErr: true,
		},
		{
			name:    "nil session",
			session: nil,
			reader:  &fakeReader{profile: premium},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fetcher := NewFetcher(test.reader)
			profile, err := fetcher.FetchProfile(context.Background(), test.session)

			if (err != nil) != test.wantErr {
				t.Fatalf("FetchProfile() error = %v, wantErr %v", err, test.wantErr)
			}
			if IsDeleted(err) != test.wantDeleted {
				t.Errorf("IsDeleted() = %v, want %v (err = %v)", IsDeleted(err), test.wantDeleted, err)
			}
			if test.wantProfile && profile == nil {
				t.Fatal("FetchProfile() returned nil profile without error")
			}
			if test.wantProfile && profile.Plan != models.PlanPremium {
				t.Errorf("profile.Plan = %q, want %q", profile.Plan, models.PlanPremium)
			}
		})
	}
}

func TestProfile_CanManageBilling(t *testing.T) {
	tests := []struct {
		name    string
		profile models.Profile
		want    bool
	}{
		{name: "premium with customer id", profile: models.Profile{Plan: models.PlanPremium, StripeCustomerID: "cus_1"}, want: true},
		{name: "premium without customer id", profile: models.Profile{Plan: models.PlanPremium}, want: false},
		{name: "free", profile: models.Profile{Plan: models.PlanFree, StripeCustomerID: "cus_1"}, want: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.profile.CanManageBilling(); got != test.want {
				t.Errorf("CanManageBilling() = %v, want %v", got, test.want)
			}
		})
	}
}
