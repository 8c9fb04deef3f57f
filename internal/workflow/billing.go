package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aura-detect/aura/internal/models"
)

type billingBackend interface {
	CreateCheckoutSession(ctx context.Context, accessToken string) (string, error)
	CreatePortalSession(ctx context.Context, accessToken string) (string, error)
}

// Navigator performs the full browser navigation to an external URL.
// Control leaves the application once it succeeds.
type Navigator interface {
	Navigate(url string) error
}

// BillingWorkflow requests checkout and portal URLs and hands them to the
// navigator. Failures stay local to the workflow; nothing navigates.
type BillingWorkflow struct {
	backend   billingBackend
	navigator Navigator
	logger    *slog.Logger

	mu  sync.Mutex
	err error
}

func NewBillingWorkflow(backend billingBackend, navigator Navigator, logger *slog.Logger) *BillingWorkflow {
	return &BillingWorkflow{
		backend:   backend,
		navigator: navigator,
		logger:    logger,
	}
}

// StartUpgrade requests a hosted-checkout URL and navigates to it.
func (w *BillingWorkflow) StartUpgrade(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.AccessToken == "" {
		return w.fail(ErrNotAuthenticated)
	}
	url, err := w.backend.CreateCheckoutSession(ctx, sess.AccessToken)
	if err != nil {
		return w.fail(err)
	}
	w.logger.Info("redirecting to checkout", "url", url)
	if err := w.navigator.Navigate(url); err != nil {
		return w.fail(err)
	}
	w.clearErr()
	return nil
}

// ManageBilling requests a customer-portal URL and navigates to it. The
// profile must already carry a billing customer id; without one the request
// is never issued.
func (w *BillingWorkflow) ManageBilling(ctx context.Context, sess *models.Session, profile *models.Profile) error {
	if sess == nil || sess.AccessToken == "" {
		return w.fail(ErrNotAuthenticated)
	}
	if !profile.CanManageBilling() {
		return w.fail(ErrNoBillingCustomer)
	}
	url, err := w.backend.CreatePortalSession(ctx, sess.AccessToken)
	if err != nil {
		return w.fail(err)
	}
	w.logger.Info("redirecting to billing portal", "url", url)
	if err := w.navigator.Navigate(url); err != nil {
		return w.fail(err)
	}
	w.clearErr()
	return nil
}

// Err returns the workflow-local error from the last operation, if any.
func (w *BillingWorkflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *BillingWorkflow) fail(err error) error {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
	return err
}

func (w *BillingWorkflow) clearErr() {
	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
}
