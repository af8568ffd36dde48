package service

import (
	"context"
	"time"

	"multiai-telebot/backend/conversation/repository"
	"multiai-telebot/backend/pkg/config"
	"multiai-telebot/backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Sweeper purges conversations inactive beyond the configured horizon.
// It only acts when told to: either through PurgeNow (the admin
// trigger) or through the Run loop whose cadence the caller owns.
type Sweeper struct {
	repo     repository.ConversationRepository
	settings *config.Runtime
	interval time.Duration
	log      *logger.Logger

	purged metric.Int64Counter
}

func NewSweeper(repo repository.ConversationRepository, settings *config.Runtime, interval time.Duration, log *logger.Logger) *Sweeper {
	meter := otel.Meter("multiai-telebot/conversation")
	purged, _ := meter.Int64Counter("conversations_purged_total",
		metric.WithDescription("Conversations removed by the retention sweep"))

	return &Sweeper{
		repo:     repo,
		settings: settings,
		interval: interval,
		log:      log,
		purged:   purged,
	}
}

// PurgeNow runs one sweep with the currently configured horizon and
// returns how many conversations were removed. Zero matches is a
// successful sweep.
func (s *Sweeper) PurgeNow(ctx context.Context) (int64, error) {
	horizon := time.Duration(s.settings.PurgeDays()) * 24 * time.Hour
	n, err := s.repo.PurgeStale(ctx, horizon)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.purged.Add(ctx, n)
		s.log.Info("purged stale conversations", "count", n, "horizon_days", s.settings.PurgeDays())
	}
	return n, nil
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeNow(ctx); err != nil {
				s.log.LogError(err, "retention sweep failed")
			}
		}
	}
}
