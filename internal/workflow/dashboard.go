package workflow

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aura-detect/aura/internal/models"
)

type dashboardBackend interface {
	DashboardStats(ctx context.Context, accessToken string) (*models.DashboardStats, error)
	ListDetections(ctx context.Context, accessToken string, skip, limit int) (*models.ListDetectionsResult, error)
}

type profileFetcher interface {
	FetchProfile(ctx context.Context, sess *models.Session) (*models.Profile, error)
}

// DashboardData is the complete aggregate for the summary view.
type DashboardData struct {
	Stats   *models.DashboardStats
	Recent  []models.Detection
	Profile *models.Profile
}

// DashboardWorkflow fires the three authenticated fetches concurrently and
// waits for all of them. Any single failure aborts the aggregate: the
// dashboard renders whole or not at all, never a partial view.
type DashboardWorkflow struct {
	backend     dashboardBackend
	profiles    profileFetcher
	recentLimit int
	logger      *slog.Logger
}

func NewDashboardWorkflow(backend dashboardBackend, profiles profileFetcher, recentLimit int, logger *slog.Logger) *DashboardWorkflow {
	if recentLimit < 1 {
		recentLimit = 5
	}
	return &DashboardWorkflow{
		backend:     backend,
		profiles:    profiles,
		recentLimit: recentLimit,
		logger:      logger,
	}
}

// Load gathers stats, recent detections and the profile for the session.
func (w *DashboardWorkflow) Load(ctx context.Context, sess *models.Session) (*DashboardData, error) {
	if sess == nil || sess.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}

	data := &DashboardData{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := w.backend.DashboardStats(gctx, sess.AccessToken)
		if err != nil {
			return err
		}
		data.Stats = stats
		return nil
	})
	g.Go(func() error {
		recent, err := w.backend.ListDetections(gctx, sess.AccessToken, 0, w.recentLimit)
		if err != nil {
			return err
		}
		data.Recent = recent.Items
		return nil
	})
	g.Go(func() error {
		profile, err := w.profiles.FetchProfile(gctx, sess)
		if err != nil {
			return err
		}
		data.Profile = profile
		return nil
	})

	if err := g.Wait(); err != nil {
		w.logger.Warn("dashboard load failed", "error", err)
		return nil, err
	}
	return data, nil
}
