// Package workflow implements the client-side async workflows: detect,
// history pagination, billing redirect with post-redirect reconciliation,
// and the dashboard aggregate. Each workflow owns its state, catches errors
// at its own boundary and exposes a snapshot for rendering; recovery is
// always user-initiated.
package workflow

import "errors"

// Phase is the lifecycle of one workflow instance.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
)

var (
	// ErrNotAuthenticated is returned when an operation requires a session
	// and none exists.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSubmissionInFlight rejects a second submission while one is
	// outstanding.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")

	// ErrFetchInFlight rejects overlapping history fetches; pages must be
	// requested in cursor order.
	ErrFetchInFlight = errors.New("a fetch is already in flight")

	// ErrEmptyText rejects a detect submission with nothing to classify.
	ErrEmptyText = errors.New("text must not be empty")

	// ErrNoBillingCustomer blocks the billing portal for profiles without a
	// billing customer id.
	ErrNoBillingCustomer = errors.New("no billing customer on file")

	// ErrMissingSessionID marks a checkout return leg without a session_id,
	// which cannot be verified.
	ErrMissingSessionID = errors.New("missing checkout session id")
)
