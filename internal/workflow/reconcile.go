package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aura-detect/aura/internal/api"
	"github.com/aura-detect/aura/internal/models"
)

// User-facing messages for the return leg, kept verbatim from the product.
const (
	MsgAuthMissing    = "認証情報が見つかりません。再度ログインしてお試しください。"
	MsgVerifyFallback = "サーバーでエラーが発生しました。"
)

// ErrAuthMissing reports a checkout return leg without a live session.
// Guessing is not an option here; the user re-authenticates.
var ErrAuthMissing = errors.New(MsgAuthMissing)

type reconcileBackend interface {
	VerifyPaymentSession(ctx context.Context, accessToken, sessionID string) error
	SyncSubscription(ctx context.Context, accessToken string) error
}

// SessionSource is the pull side of the session store.
type SessionSource interface {
	Current(ctx context.Context) *models.Session
}

// ReconcileWorkflow runs after the browser returns from the external payment
// flow: re-check the session, then force the local plan record to match the
// payment provider's state. No automatic retries; failure offers navigation
// back, nothing more.
type ReconcileWorkflow struct {
	backend  reconcileBackend
	sessions SessionSource
	logger   *slog.Logger
}

func NewReconcileWorkflow(backend reconcileBackend, sessions SessionSource, logger *slog.Logger) *ReconcileWorkflow {
	return &ReconcileWorkflow{
		backend:  backend,
		sessions: sessions,
		logger:   logger,
	}
}

// VerifyCheckout confirms a completed checkout identified by the session_id
// the provider appended to the return URL.
func (w *ReconcileWorkflow) VerifyCheckout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrMissingSessionID
	}
	sess := w.sessions.Current(ctx)
	if sess == nil {
		return ErrAuthMissing
	}
	if err := w.backend.VerifyPaymentSession(ctx, sess.AccessToken, sessionID); err != nil {
		w.logger.Warn("checkout verification failed", "error", err)
		return verifyError(err)
	}
	w.logger.Info("checkout verified", "session_id", sessionID)
	return nil
}

// SyncPlan re-reads subscription state from the payment provider, used when
// returning from the billing portal where no session_id exists.
func (w *ReconcileWorkflow) SyncPlan(ctx context.Context) error {
	sess := w.sessions.Current(ctx)
	if sess == nil {
		return ErrAuthMissing
	}
	if err := w.backend.SyncSubscription(ctx, sess.AccessToken); err != nil {
		w.logger.Warn("subscription sync failed", "error", err)
		return verifyError(err)
	}
	w.logger.Info("subscription synced")
	return nil
}

// verifyError keeps the backend's own message (server detail or the
// status-based one) and reserves the generic fallback for transport-level
// failures that carry no usable text.
func verifyError(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return fmt.Errorf("%s: %w", MsgVerifyFallback, err)
}
