package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "apptboard/internal/log"
)

// StartScheduler runs f.Refresh on the given standard cron schedule until
// ctx is canceled. The returned cron instance is already started.
func StartScheduler(ctx context.Context, spec string, f *Feed) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := f.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
			// Already logged by Refresh; keep the scheduler running.
			appLog.Debug("scheduled refresh returned error", "err", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("feed: invalid refresh schedule %q: %w", spec, err)
	}

	c.Start()
	appLog.Info("refresh scheduler started", "schedule", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return c, nil
}
