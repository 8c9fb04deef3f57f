package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aura-detect/aura/internal/api"
	"github.com/aura-detect/aura/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession() *models.Session {
	return &models.Session{
		AccessToken: "token-abc",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        models.User{ID: "u1", Email: "u1@example.com"},
	}
}

type fakeDetectBackend struct {
	result  *models.DetectionResult
	err     error
	calls   int
	release chan struct{} // when set, Detect blocks until closed
	started chan struct{}
}

func (f *fakeDetectBackend) Detect(ctx context.Context, accessToken, text string) (*models.DetectionResult, error) {
	f.calls++
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

// Scenario: "Hello world" comes back AI-likely at 0.87 with the detailed
// analysis locked (null) for the free tier.
func TestDetectWorkflow_Submit(t *testing.T) {
	backend := &fakeDetectBackend{
		result: &models.DetectionResult{IsAI: true, Score: 0.87, DetailedAnalysis: nil},
	}
	w := NewDetectWorkflow(backend, quietLogger())

	invalidated := 0
	w.OnSuccess(func() { invalidated++ })

	result, err := w.Submit(context.Background(), testSession(), "Hello world")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !result.IsAI || models.FormatScore(result.Score) != "87.0" {
		t.Errorf("result = %+v, want is_ai with 87.0%%", result)
	}
	if result.DetailedAnalysis != nil {
		t.Errorf("DetailedAnalysis = %v, want nil (feature locked)", result.DetailedAnalysis)
	}
	if invalidated != 1 {
		t.Errorf("history invalidation hook fired %d times, want 1", invalidated)
	}

	snap := w.Snapshot()
	if snap.Phase != PhaseIdle {
		t.Errorf("Phase = %q, want idle after completion", snap.Phase)
	}
	if snap.Result == nil || snap.Err != nil {
		t.Errorf("snapshot = %+v, want result without error", snap)
	}
}

func TestDetectWorkflow_SubmitRejections(t *testing.T) {
	tests := []struct {
		name    string
		session *models.Session
		text    string
		wantErr error
	}{
		{name: "no session", session: nil, text: "hello", wantErr: ErrNotAuthenticated},
		{name: "empty text", session: testSession(), text: "   ", wantErr: ErrEmptyText},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			backend := &fakeDetectBackend{}
			w := NewDetectWorkflow(backend, quietLogger())

			_, err := w.Submit(context.Background(), test.session, test.text)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Submit() error = %v, want %v", err, test.wantErr)
			}
			if backend.calls != 0 {
				t.Errorf("backend called %d times, want 0", backend.calls)
			}
		})
	}
}

func TestDetectWorkflow_ErrorKeepsWorkflowReusable(t *testing.T) {
	backend := &fakeDetectBackend{err: &api.APIError{StatusCode: 401}}
	w := NewDetectWorkflow(backend, quietLogger())

	invalidated := 0
	w.OnSuccess(func() { invalidated++ })

	_, err := w.Submit(context.Background(), testSession(), "hello")
	if err == nil {
		t.Fatal("Submit() error = nil, want auth error")
	}
	if err.Error() != api.MsgAuthExpired {
		t.Errorf("error message = %q, want the authentication variant", err.Error())
	}
	if invalidated != 0 {
		t.Error("invalidation hook fired on failure")
	}

	snap := w.Snapshot()
	if snap.Phase != PhaseIdle {
		t.Errorf("Phase = %q, want idle (ready for the next submission)", snap.Phase)
	}

	// The workflow accepts the next submission after a failure.
	backend.err = nil
	backend.result = &models.DetectionResult{IsAI: false, Score: 0.1, DetailedAnalysis: []models.AnalysisItem{}}
	if _, err := w.Submit(context.Background(), testSession(), "hello again"); err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}
	snap = w.Snapshot()
	if snap.Err != nil {
		t.Errorf("previous error survived a new submission: %v", snap.Err)
	}
}

func TestDetectWorkflow_SecondSubmissionRejectedWhileInFlight(t *testing.T) {
	backend := &fakeDetectBackend{
		result:  &models.DetectionResult{IsAI: false, Score: 0.2, DetailedAnalysis: nil},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	started := backend.started
	w := NewDetectWorkflow(backend, quietLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Submit(context.Background(), testSession(), "first")
	}()
	<-started

	if _, err := w.Submit(context.Background(), testSession(), "second"); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("Submit() while in flight error = %v, want ErrSubmissionInFlight", err)
	}

	close(backend.release)
	<-done

	if snap := w.Snapshot(); snap.Result == nil {
		t.Error("first submission's result was lost")
	}
}

func TestDetectWorkflow_ResetDiscardsStaleResult(t *testing.T) {
	backend := &fakeDetectBackend{
		result:  &models.DetectionResult{IsAI: true, Score: 0.9, DetailedAnalysis: nil},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	started := backend.started
	w := NewDetectWorkflow(backend, quietLogger())

	invalidated := 0
	w.OnSuccess(func() { invalidated++ })

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Submit(context.Background(), testSession(), "old text")
	}()
	<-started

	w.Reset()
	close(backend.release)
	<-done

	snap := w.Snapshot()
	if snap.Result != nil || snap.Err != nil {
		t.Errorf("stale completion was applied: %+v", snap)
	}
	if invalidated != 0 {
		t.Error("invalidation hook fired for a superseded submission")
	}
}
