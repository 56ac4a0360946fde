package snapshot

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// NewScheduler returns a seconds-aware cron running r.RunOnce on spec.
// Passes are bounded by timeout and never overlap.
func NewScheduler(r *Recorder, spec string, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.WithError(err).Error("Snapshot pass failed")
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
