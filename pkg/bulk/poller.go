package bulk

import (
	"context"
	"fmt"
	"time"
)

// Poll queries the job status on a fixed interval until the job reaches a
// terminal state or the attempt budget is exhausted.
//
// Returns the final status on completion, ErrJobFailed as soon as the server
// reports failure, and ErrPollTimeout after cfg.MaxAttempts polls without a
// terminal state. Transport errors on individual polls are logged and counted
// against the attempt budget; a flaky status endpoint should not abort a job
// that is still running.
func (c *Client) Poll(ctx context.Context, handle JobHandle, cfg PollConfig) (JobStatus, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollConfig().Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultPollConfig().MaxAttempts
	}

	var last JobStatus

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		status, err := c.GetStatus(ctx, handle)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("request_id", handle.RequestID).
				Int("attempt", attempt).
				Msg("Status poll failed")
		} else {
			last = status

			switch status.State {
			case StateCompleted:
				bulkJobsTotal.WithLabelValues("completed").Inc()
				c.logger.Info().
					Str("request_id", handle.RequestID).
					Int("attempt", attempt).
					Int("completed", status.CompletedRequests).
					Int("total", status.TotalRequests).
					Msg("Bulk job completed")
				return status, nil

			case StateFailed:
				bulkJobsTotal.WithLabelValues("failed").Inc()
				c.logger.Warn().
					Str("request_id", handle.RequestID).
					Int("attempt", attempt).
					Msg("Bulk job reported failed")
				return status, fmt.Errorf("%w: request %s", ErrJobFailed, handle.RequestID)
			}

			c.logger.Debug().
				Str("request_id", handle.RequestID).
				Str("state", string(status.State)).
				Int("attempt", attempt).
				Int("completed", status.CompletedRequests).
				Int("total", status.TotalRequests).
				Msg("Bulk job in progress")
		}

		// Don't sleep after the final attempt
		if attempt >= cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return last, fmt.Errorf("poll cancelled: %w", ctx.Err())
		case <-time.After(cfg.Interval):
		}
	}

	bulkJobsTotal.WithLabelValues("timeout").Inc()
	c.logger.Warn().
		Str("request_id", handle.RequestID).
		Int("max_attempts", cfg.MaxAttempts).
		Dur("interval", cfg.Interval).
		Msg("Bulk job poll budget exhausted")

	return last, fmt.Errorf("%w: request %s after %d attempts", ErrPollTimeout, handle.RequestID, cfg.MaxAttempts)
}
