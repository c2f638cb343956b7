package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/cog-hubspot/internal/store"
)

// Job names.
const (
	JobTokenRefresh = "token-refresh"
	JobRunPrune     = "run-prune"
)

// TokenRefresher renews OAuth access tokens.
type TokenRefresher interface {
	RefreshToken(ctx context.Context) error
}

// TokenRefreshJob keeps a long-lived client's access token fresh.
func TokenRefreshJob(r TokenRefresher) JobFunc {
	return func(ctx context.Context) error {
		return r.RefreshToken(ctx)
	}
}

// PruneJob deletes runs older than retention from the run log and reclaims
// the freed space when anything was removed.
func PruneJob(s store.Store, retention time.Duration, now func() time.Time, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		cutoff := now().Add(-retention)
		n, err := s.PruneRuns(ctx, cutoff)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		logger.Info("pruned run log", slog.Int64("deleted", n), slog.Time("before", cutoff))
		return s.Vacuum(ctx)
	}
}
