package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ternarybob/geoscope/internal/interfaces"
)

// sweeper runs the scheduled draft eviction pass. Drafts get an expiry
// stamp when their job terminates; the sweep deletes the expired ones.
type sweeper struct {
	engine *Service
	cron   *cron.Cron
}

func newSweeper(engine *Service) *sweeper {
	return &sweeper{engine: engine}
}

// start schedules the sweep. The schedule uses six fields with seconds.
func (w *sweeper) start(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser))

	if _, err := c.AddFunc(schedule, w.sweep); err != nil {
		return fmt.Errorf("invalid eviction schedule %q: %w", schedule, err)
	}
	c.Start()
	w.cron = c

	w.engine.logger.Info().Str("schedule", schedule).Msg("Draft eviction sweep scheduled")
	return nil
}

func (w *sweeper) sweep() {
	ctx := context.Background()
	deleted, err := w.engine.storage.DraftStorage().DeleteExpired(ctx, time.Now())
	if err != nil {
		w.engine.logger.Warn().Err(err).Msg("Draft eviction sweep failed")
		return
	}
	if deleted == 0 {
		return
	}

	w.engine.logger.Info().Int("deleted", deleted).Msg("Expired drafts evicted")
	w.engine.publish(interfaces.EventDraftsEvicted, map[string]any{"deleted": deleted})
}

func (w *sweeper) stop() {
	if w.cron != nil {
		w.cron.Stop()
	}
}
