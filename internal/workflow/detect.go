package workflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/aura-detect/aura/internal/models"
	"github.com/aura-detect/aura/internal/schema"
)

type detectBackend interface {
	Detect(ctx context.Context, accessToken, text string) (*models.DetectionResult, error)
}

// DetectWorkflow runs one submission at a time through
// idle -> submitting -> {result | error} and always returns to idle.
type DetectWorkflow struct {
	backend detectBackend
	logger  *slog.Logger

	mu         sync.Mutex
	generation uint64
	phase      Phase
	result     *models.DetectionResult
	err        error
	onSuccess  []func()
}

// DetectSnapshot is the renderable state of the workflow.
type DetectSnapshot struct {
	Phase  Phase
	Result *models.DetectionResult
	Err    error
}

func NewDetectWorkflow(backend detectBackend, logger *slog.Logger) *DetectWorkflow {
	return &DetectWorkflow{
		backend: backend,
		logger:  logger,
		phase:   PhaseIdle,
	}
}

// OnSuccess registers a hook fired after each successful detection; the
// history workflow uses it to invalidate its cached pages.
func (w *DetectWorkflow) OnSuccess(fn func()) {
	w.mu.Lock()
	w.onSuccess = append(w.onSuccess, fn)
	w.mu.Unlock()
}

// Submit classifies text. Previous result and error are cleared on entry.
// A second call while one is outstanding returns ErrSubmissionInFlight.
func (w *DetectWorkflow) Submit(ctx context.Context, sess *models.Session, text string) (*models.DetectionResult, error) {
	if sess == nil || sess.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	w.mu.Lock()
	if w.phase == PhaseSubmitting {
		w.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	w.phase = PhaseSubmitting
	w.result = nil
	w.err = nil
	w.generation++
	stamp := w.generation
	w.mu.Unlock()

	result, err := w.backend.Detect(ctx, sess.AccessToken, text)

	w.mu.Lock()
	if stamp != w.generation {
		// Superseded by Reset; the outcome belongs to a stale invocation.
		w.mu.Unlock()
		return result, err
	}
	w.phase = PhaseIdle
	var hooks []func()
	if err != nil {
		w.err = err
		if schema.IsValidationError(err) {
			// Same surface as a network error for the user, but worth a
			// distinct log line: the backend broke its contract.
			w.logger.Error("detect response failed validation", "error", err)
		}
	} else {
		w.result = result
		hooks = append(hooks, w.onSuccess...)
	}
	w.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return result, err
}

// Snapshot returns the current renderable state.
func (w *DetectWorkflow) Snapshot() DetectSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return DetectSnapshot{Phase: w.phase, Result: w.result, Err: w.err}
}

// Reset clears result and error, e.g. on sign-out. An in-flight submission
// is not cancelled, but its outcome will be discarded as stale.
func (w *DetectWorkflow) Reset() {
	w.mu.Lock()
	w.generation++
	w.phase = PhaseIdle
	w.result = nil
	w.err = nil
	w.mu.Unlock()
}
