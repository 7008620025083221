// Package fanout provides the batched per-entity fallback fetch strategy used
// when the bulk allocation job API is unavailable.
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/staffbridge/allocation-client/pkg/allocation"
)

// Config holds batch fetcher configuration.
type Config struct {
	// BatchSize is the number of entities fetched in parallel per batch.
	BatchSize int
	// InterBatchDelay is the pause between batches, a rate-limiting courtesy
	// to the backend.
	InterBatchDelay time.Duration
	// Timeout per entity fetch.
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration for the fallback path.
func DefaultConfig() Config {
	return Config{
		BatchSize:       20,
		InterBatchDelay: 200 * time.Millisecond,
		Timeout:         15 * time.Second,
	}
}

// EntityFetcher is the interface the client must implement for single-entity fetching.
type EntityFetcher interface {
	// FetchEntity fetches the allocation records for one entity.
	FetchEntity(ctx context.Context, entityID int64, startPeriod, endPeriod string) ([]allocation.Record, error)
}

// BatchFetcher fetches many entities in contiguous batches: requests within a
// batch run in parallel, batches run strictly one after another.
type BatchFetcher struct {
	fetcher EntityFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher EntityFetcher, config Config) *BatchFetcher {
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	if config.InterBatchDelay < 0 {
		config.InterBatchDelay = 200 * time.Millisecond
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// Partition splits entity IDs into contiguous batches of at most batchSize.
// The concatenation of all batches equals the input, no omissions or duplicates.
func Partition(entityIDs []int64, batchSize int) [][]int64 {
	if batchSize <= 0 {
		batchSize = 1
	}

	var batches [][]int64
	for start := 0; start < len(entityIDs); start += batchSize {
		end := start + batchSize
		if end > len(entityIDs) {
			end = len(entityIDs)
		}
		batches = append(batches, entityIDs[start:end])
	}
	return batches
}

// FetchAll fetches allocation records for all entities.
// A failed entity contributes zero records and is logged only; the fallback as
// a whole does not fail on partial errors. Output preserves input entity order.
// Returns an error only when the context is cancelled mid-fetch, along with the
// records collected so far.
func (bf *BatchFetcher) FetchAll(ctx context.Context, entityIDs []int64, startPeriod, endPeriod string) ([]allocation.Record, error) {
	start := time.Now()
	batches := Partition(entityIDs, bf.config.BatchSize)

	log.Info().
		Int("entities", len(entityIDs)).
		Int("batches", len(batches)).
		Int("batch_size", bf.config.BatchSize).
		Msg("Starting fallback batch fetch")

	var records []allocation.Record
	fetchedEntities := 0

	for batchIdx, batch := range batches {
		select {
		case <-ctx.Done():
			log.Warn().
				Int("batch", batchIdx).
				Int("fetched_entities", fetchedEntities).
				Msg("Fallback fetch cancelled - returning partial results")
			return records, ctx.Err()
		default:
		}

		// Fan out within the batch, indexed by position to keep input order
		batchResults := make([][]allocation.Record, len(batch))
		var wg sync.WaitGroup
		for i, entityID := range batch {
			wg.Add(1)
			go func(i int, entityID int64) {
				defer wg.Done()

				entityCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
				defer cancel()

				recs, err := bf.fetcher.FetchEntity(entityCtx, entityID, startPeriod, endPeriod)
				if err != nil {
					// Entity contributes no records; the report degrades, not fails
					log.Warn().
						Err(err).
						Int64("entity_id", entityID).
						Int("batch", batchIdx).
						Msg("Entity fetch failed")
					return
				}
				batchResults[i] = recs
			}(i, entityID)
		}
		wg.Wait()

		for _, recs := range batchResults {
			if recs != nil {
				fetchedEntities++
			}
			records = append(records, recs...)
		}

		log.Debug().
			Int("batch", batchIdx+1).
			Int("total_batches", len(batches)).
			Int("fetched_entities", fetchedEntities).
			Msg("Batch complete")

		// Pause between batches, but not after the last one
		if batchIdx < len(batches)-1 && bf.config.InterBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return records, ctx.Err()
			case <-time.After(bf.config.InterBatchDelay):
			}
		}
	}

	log.Info().
		Int("entities", len(entityIDs)).
		Int("fetched_entities", fetchedEntities).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fallback fetch complete")

	return records, nil
}
