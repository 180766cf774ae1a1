package history

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mimir-aip/cropwise/pkg/logger"
)

// DefaultRetentionSchedule prunes once a day at midnight
const DefaultRetentionSchedule = "@daily"

// Pruner deletes entries created before a cutoff
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention periodically deletes history older than MaxAge
type Retention struct {
	store  Pruner
	maxAge time.Duration
	cron   *cron.Cron
	now    func() time.Time
	log    zerolog.Logger
}

// NewRetention schedules pruning on a standard cron expression or descriptor
func NewRetention(store Pruner, maxAge time.Duration, schedule string) (*Retention, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention age must be positive, got %s", maxAge)
	}
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}

	r := &Retention{
		store:  store,
		maxAge: maxAge,
		cron:   cron.New(),
		now:    time.Now,
		log:    logger.Component("retention"),
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start starts the scheduler
func (r *Retention) Start() {
	r.cron.Start()
	r.log.Info().Dur("max_age", r.maxAge).Msg("History retention started")
}

// Stop stops the scheduler and waits for a running prune to finish
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info().Msg("History retention stopped")
}

// Prune deletes every entry older than the retention age
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	return r.store.DeleteOlderThan(ctx, r.now().Add(-r.maxAge))
}

func (r *Retention) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := r.Prune(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("History pruning failed")
		return
	}
	r.log.Info().Int64("deleted", n).Msg("History pruned")
}
