package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/drylab-ai/drylab/internal/state"
)

const maxBackoff = 30 * time.Second

// StartPoller launches a background goroutine that reloads the job list at
// the given cadence, backing off while the gateway is unreachable. A
// non-positive interval disables polling. It returns immediately.
func StartPoller(ctx context.Context, jobs *state.JobList, fetcher state.JobsFetcher, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		for {
			refresh(ctx, jobs, fetcher)
			wait := calculateBackoff(jobs.Snapshot().ConsecutiveFailures, interval)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// calculateBackoff doubles base per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func refresh(ctx context.Context, jobs *state.JobList, fetcher state.JobsFetcher) {
	if err := jobs.Reload(ctx, fetcher); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("job list poll failed")
	}
}
