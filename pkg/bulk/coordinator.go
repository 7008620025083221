package bulk

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/staffbridge/allocation-client/pkg/allocation"
	"github.com/staffbridge/allocation-client/pkg/fanout"
)

var (
	fallbackEngagedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alloc_fallback_engaged_total",
		Help: "Total refresh cycles that degraded to the per-entity fallback",
	})

	staleCyclesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alloc_stale_cycles_discarded_total",
		Help: "Total refresh cycles whose results were dropped because a newer cycle started",
	})
)

// Source identifies which fetch strategy produced a snapshot.
type Source string

const (
	// SourceBulk means the snapshot came from a completed bulk job.
	SourceBulk Source = "bulk"

	// SourceFallback means the snapshot came from the per-entity fallback.
	SourceFallback Source = "fallback"
)

// Snapshot is one completed refresh cycle's output, published atomically.
type Snapshot struct {
	Grouped     allocation.Grouped
	Request     Request
	Source      Source
	CycleID     string
	RefreshedAt time.Time
}

// Coordinator runs the full refresh workflow and guards against stale cycles
// overwriting fresher results.
//
// Policy for the primary path: any non-success terminal outcome (submission
// error, server-reported job failure, poll timeout) engages the fallback. A
// failed job is never re-polled or re-submitted. Only both paths failing
// surfaces an error to the caller.
type Coordinator struct {
	client   *Client
	fallback *fanout.BatchFetcher
	poll     PollConfig
	logger   zerolog.Logger

	// gen orders refresh cycles; only the newest may publish.
	gen atomic.Uint64

	mu     sync.RWMutex
	latest *Snapshot
}

// NewCoordinator wires the workflow together.
func NewCoordinator(client *Client, fallbackCfg fanout.Config, poll PollConfig) *Coordinator {
	if poll.Interval <= 0 || poll.MaxAttempts <= 0 {
		poll = DefaultPollConfig()
	}
	return &Coordinator{
		client:   client,
		fallback: fanout.NewBatchFetcher(client, fallbackCfg),
		poll:     poll,
		logger:   log.With().Str("component", "coordinator").Logger(),
	}
}

// Latest returns the most recently published snapshot, if any.
func (c *Coordinator) Latest() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return nil, false
	}
	return c.latest, true
}

// Refresh runs one fetch cycle for the given request and returns the grouped
// allocations. An empty entity set short-circuits to an empty result without
// any network call. The snapshot is published only if no newer refresh was
// dispatched in the meantime.
func (c *Coordinator) Refresh(ctx context.Context, req Request) (allocation.Grouped, error) {
	gen := c.gen.Add(1)
	cycleID := uuid.NewString()
	logger := c.logger.With().Str("cycle_id", cycleID).Logger()

	if len(req.EntityIDs) == 0 {
		logger.Debug().Msg("Empty entity set - skipping fetch")
		grouped := make(allocation.Grouped)
		c.publish(gen, &Snapshot{
			Grouped:     grouped,
			Request:     req,
			Source:      SourceBulk,
			CycleID:     cycleID,
			RefreshedAt: time.Now(),
		}, logger)
		return grouped, nil
	}

	start := time.Now()
	logger.Info().
		Int("entities", len(req.EntityIDs)).
		Str("start_period", req.StartPeriod).
		Str("end_period", req.EndPeriod).
		Msg("Refresh cycle started")

	grouped, source, err := c.fetch(ctx, req, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("source", string(source)).
		Int("periods", len(grouped)).
		Dur("duration", time.Since(start)).
		Msg("Refresh cycle finished")

	c.publish(gen, &Snapshot{
		Grouped:     grouped,
		Request:     req,
		Source:      source,
		CycleID:     cycleID,
		RefreshedAt: time.Now(),
	}, logger)

	return grouped, nil
}

// fetch tries the bulk path and degrades to the fallback on any failure.
func (c *Coordinator) fetch(ctx context.Context, req Request, logger zerolog.Logger) (allocation.Grouped, Source, error) {
	handle, err := c.client.Submit(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Msg("Bulk submission failed - engaging fallback")
		return c.fetchFallback(ctx, req, logger)
	}

	if _, err := c.client.Poll(ctx, handle, c.poll); err != nil {
		// Failed or timed-out jobs are abandoned, not retried
		logger.Warn().
			Err(err).
			Str("request_id", handle.RequestID).
			Msg("Bulk job did not complete - engaging fallback")
		return c.fetchFallback(ctx, req, logger)
	}

	entries, err := c.client.FetchResults(ctx, handle)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("request_id", handle.RequestID).
			Msg("Result fetch failed - engaging fallback")
		return c.fetchFallback(ctx, req, logger)
	}

	return allocation.Aggregate(entries), SourceBulk, nil
}

func (c *Coordinator) fetchFallback(ctx context.Context, req Request, logger zerolog.Logger) (allocation.Grouped, Source, error) {
	fallbackEngagedTotal.Inc()

	records, err := c.fallback.FetchAll(ctx, req.EntityIDs, req.StartPeriod, req.EndPeriod)
	if err != nil {
		logger.Error().Err(err).Msg("Fallback fetch failed")
		return nil, SourceFallback, err
	}

	return allocation.Group(records), SourceFallback, nil
}

// publish installs the snapshot as latest unless a newer cycle has started.
func (c *Coordinator) publish(gen uint64, snapshot *Snapshot, logger zerolog.Logger) {
	if gen != c.gen.Load() {
		staleCyclesDiscarded.Inc()
		logger.Debug().
			Uint64("cycle_gen", gen).
			Uint64("latest_gen", c.gen.Load()).
			Msg("Stale refresh cycle discarded")
		return
	}

	c.mu.Lock()
	c.latest = snapshot
	c.mu.Unlock()
}
