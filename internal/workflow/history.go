package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aura-detect/aura/internal/models"
)

type historyBackend interface {
	ListDetections(ctx context.Context, accessToken string, skip, limit int) (*models.ListDetectionsResult, error)
}

// HistoryWorkflow maintains the ordered, append-only list of past
// detections, a zero-based page cursor and a has-more flag.
//
// Pagination terminates on the short-page heuristic alone: a full page means
// more may exist, a short page is the sole end signal. The total count the
// list endpoint also returns is validated but never consulted for paging.
type HistoryWorkflow struct {
	backend historyBackend
	limit   int
	logger  *slog.Logger

	mu         sync.Mutex
	generation uint64
	items      []models.Detection
	page       int
	hasMore    bool
	loading    bool
	err        error
}

// HistorySnapshot is the renderable state of the workflow.
type HistorySnapshot struct {
	Items   []models.Detection
	HasMore bool
	Loading bool
	Err     error
}

func NewHistoryWorkflow(backend historyBackend, limit int, logger *slog.Logger) *HistoryWorkflow {
	if limit < 1 {
		limit = 3
	}
	return &HistoryWorkflow{
		backend: backend,
		limit:   limit,
		hasMore: true,
		logger:  logger,
	}
}

// FetchPage requests `limit` items at offset page*limit. With fresh the
// local list is replaced, otherwise the page is appended. A failed fetch
// leaves previously loaded pages intact.
func (w *HistoryWorkflow) FetchPage(ctx context.Context, sess *models.Session, page int, fresh bool) error {
	if sess == nil || sess.AccessToken == "" {
		return ErrNotAuthenticated
	}

	w.mu.Lock()
	if w.loading {
		w.mu.Unlock()
		return ErrFetchInFlight
	}
	w.loading = true
	w.err = nil
	stamp := w.generation
	w.mu.Unlock()

	result, err := w.backend.ListDetections(ctx, sess.AccessToken, page*w.limit, w.limit)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	if stamp != w.generation {
		// Invalidated while in flight; the page belongs to a stale cursor.
		return nil
	}
	if err != nil {
		w.err = err
		return err
	}
	if fresh {
		w.items = append([]models.Detection(nil), result.Items...)
	} else {
		w.items = append(w.items, result.Items...)
	}
	w.page = page
	w.hasMore = len(result.Items) == w.limit
	return nil
}

// LoadMore advances the cursor by one page and appends.
func (w *HistoryWorkflow) LoadMore(ctx context.Context, sess *models.Session) error {
	w.mu.Lock()
	if !w.hasMore {
		w.mu.Unlock()
		return nil
	}
	next := w.page + 1
	w.mu.Unlock()
	return w.FetchPage(ctx, sess, next, false)
}

// EnsureLoaded fetches the first page when the list is empty and more data
// may exist. It is the lazy refetch that runs when the history view becomes
// visible after an invalidation.
func (w *HistoryWorkflow) EnsureLoaded(ctx context.Context, sess *models.Session) error {
	w.mu.Lock()
	needed := len(w.items) == 0 && w.hasMore
	w.mu.Unlock()
	if !needed {
		return nil
	}
	return w.FetchPage(ctx, sess, 0, true)
}

// Invalidate clears the cached pages after a new detection so the next view
// of history reflects it. It does not refetch eagerly.
func (w *HistoryWorkflow) Invalidate() {
	w.mu.Lock()
	w.generation++
	w.items = nil
	w.page = 0
	w.hasMore = true
	w.err = nil
	w.mu.Unlock()
}

// Snapshot returns the current renderable state.
func (w *HistoryWorkflow) Snapshot() HistorySnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	items := append([]models.Detection(nil), w.items...)
	return HistorySnapshot{Items: items, HasMore: w.hasMore, Loading: w.loading, Err: w.err}
}
