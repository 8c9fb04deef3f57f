package callback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeReconciler struct {
	verifyErr  error
	syncErr    error
	sessionIDs []string
	syncs      int
}

func (f *fakeReconciler) VerifyCheckout(ctx context.Context, sessionID string) error {
	f.sessionIDs = append(f.sessionIDs, sessionID)
	return f.verifyErr
}

func (f *fakeReconciler) SyncPlan(ctx context.Context) error {
	f.syncs++
	return f.syncErr
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(rec *fakeReconciler) (*Server, *httptest.Server) {
	s := NewServer("127.0.0.1:0", rec, quietLogger())
	return s, httptest.NewServer(s.routes())
}

func TestServer_SuccessCallback(t *testing.T) {
	rec := &fakeReconciler{}
	s, ts := newTestServer(rec)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/payment/success?session_id=cs_test_123")
	if err != nil {
		t.Fatalf("GET /payment/success error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response carried no X-Request-ID")
	}
	if !strings.Contains(string(body), "お支払いが完了しました") {
		t.Errorf("body = %q, want the completion page", body)
	}
	if len(rec.sessionIDs) != 1 || rec.sessionIDs[0] != "cs_test_123" {
		t.Errorf("reconciler saw session ids %v, want the one from the redirect", rec.sessionIDs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !res.Completed || res.Err != nil {
		t.Errorf("result = %+v, want completed without error", res)
	}
}

func TestServer_SuccessCallbackVerificationFails(t *testing.T) {
	rec := &fakeReconciler{verifyErr: errors.New("支払いが完了していません。")}
	s, ts := newTestServer(rec)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/payment/success?session_id=cs_test_123")
	if err != nil {
		t.Fatalf("GET /payment/success error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "お支払いの確認に失敗しました") {
		t.Errorf("body = %q, want the failure page", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if res.Completed || res.Err == nil {
		t.Errorf("result = %+v, want a failed verification", res)
	}
}

func TestServer_CancelCallback(t *testing.T) {
	rec := &fakeReconciler{}
	s, ts := newTestServer(rec)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/payment/cancel")
	if err != nil {
		t.Fatalf("GET /payment/cancel error = %v", err)
	}
	resp.Body.Close()

	if len(rec.sessionIDs) != 0 {
		t.Error("cancel callback triggered a verification")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if res.Completed {
		t.Error("cancel reported as completed")
	}
}

func TestServer_BillingReturn(t *testing.T) {
	rec := &fakeReconciler{}
	s, ts := newTestServer(rec)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/billing/return")
	if err != nil {
		t.Fatalf("GET /billing/return error = %v", err)
	}
	resp.Body.Close()

	if rec.syncs != 1 {
		t.Errorf("syncs = %d, want 1", rec.syncs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !res.Completed {
		t.Error("billing return not reported as completed")
	}
}

// The waiter sees the first callback only; a duplicate redirect must not
// block the handler or change the outcome.
func TestServer_FirstCallbackWins(t *testing.T) {
	rec := &fakeReconciler{}
	s, ts := newTestServer(rec)
	defer ts.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/payment/success?session_id=cs_test_123")
		if err != nil {
			t.Fatalf("GET %d error = %v", i, err)
		}
		resp.Body.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !res.Completed {
		t.Errorf("result = %+v, want completed", res)
	}
}

func TestServer_WaitHonorsContext(t *testing.T) {
	s := NewServer("127.0.0.1:0", &fakeReconciler{}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", &fakeReconciler{}, quietLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
