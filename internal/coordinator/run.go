// internal/coordinator/run.go
package coordinator

import (
	"context"
	"time"
)

// Run drives the fixed-period loop until ctx is done.
// The first cycle starts immediately. No overlap: the next cycle starts one
// interval after the previous one started, or right after it finished if it
// overran. Status time fields advance on a 1 Hz tick between cycles.
func (c *Coordinator) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	c.log.Info().Dur("interval", c.opts.Interval).Msg("coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("coordinator stopped")
			return ctx.Err()

		case <-timer.C:
			start := time.Now()
			c.Cycle(ctx)

			next := c.opts.Interval - time.Since(start)
			if next < 0 {
				next = 0
			}
			timer.Reset(next)

		case <-secTicker.C:
			c.Tick(c.now())
		}
	}
}
