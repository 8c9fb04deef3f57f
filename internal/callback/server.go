package callback

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Reconciler is the post-redirect half of the payment flow.
type Reconciler interface {
	VerifyCheckout(ctx context.Context, sessionID string) error
	SyncPlan(ctx context.Context) error
}

// Result is the outcome of one hosted-payment round trip.
type Result struct {
	Completed bool
	Err       error
}

// Server is the loopback HTTP listener the hosted payment pages redirect
// back to. It serves exactly one round trip: the first callback that
// arrives decides the result, later hits only re-render the page.
type Server struct {
	addr       string
	reconciler Reconciler
	logger     *slog.Logger

	srv     *http.Server
	results chan Result
}

func NewServer(addr string, reconciler Reconciler, logger *slog.Logger) *Server {
	s := &Server{
		addr:       addr,
		reconciler: reconciler,
		logger:     logger,
		results:    make(chan Result, 1),
	}
	s.srv = &http.Server{Handler: s.routes()}
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/payment/success", s.handleSuccess)
	r.Get("/payment/cancel", s.handleCancel)
	r.Get("/billing/return", s.handleBillingReturn)

	return r
}

// Start binds the loopback address and begins serving. Binding happens
// here, not in a goroutine, so an occupied port fails fast.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind callback listener: %w", err)
	}
	s.logger.Info("callback listener started", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("callback listener failed", "error", err)
		}
	}()
	return nil
}

// Wait blocks until a callback arrives or the context ends.
func (s *Server) Wait(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-s.results:
		return res, nil
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	err := s.reconciler.VerifyCheckout(r.Context(), sessionID)
	if err != nil {
		s.logger.Warn("checkout callback verification failed", "error", err)
		renderPage(w, http.StatusOK, "お支払いの確認に失敗しました", err.Error())
	} else {
		renderPage(w, http.StatusOK, "お支払いが完了しました", "このウィンドウを閉じて、アプリに戻ってください。")
	}
	s.deliver(Result{Completed: err == nil, Err: err})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "お支払いはキャンセルされました", "このウィンドウを閉じて、アプリに戻ってください。")
	s.deliver(Result{Completed: false})
}

func (s *Server) handleBillingReturn(w http.ResponseWriter, r *http.Request) {
	err := s.reconciler.SyncPlan(r.Context())
	if err != nil {
		s.logger.Warn("billing return sync failed", "error", err)
		renderPage(w, http.StatusOK, "プラン情報の同期に失敗しました", err.Error())
	} else {
		renderPage(w, http.StatusOK, "プラン情報を更新しました", "このウィンドウを閉じて、アプリに戻ってください。")
	}
	s.deliver(Result{Completed: err == nil, Err: err})
}

// deliver hands the result to the waiter. Only the first callback counts.
func (s *Server) deliver(res Result) {
	select {
	case s.results <- res:
	default:
	}
}

func renderPage(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="ja">
<head><meta charset="utf-8"><title>%s</title></head>
<body><h1>%s</h1><p>%s</p></body>
</html>
`, title, title, detail)
}
