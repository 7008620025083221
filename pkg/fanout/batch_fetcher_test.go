package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/staffbridge/allocation-client/pkg/allocation"
)

// fakeFetcher returns one canned record per entity and can be told to fail
// specific entities. It records call order and peak concurrency.
type fakeFetcher struct {
	mu          sync.Mutex
	failing     map[int64]bool
	delay       time.Duration
	calls       []int64
	inFlight    int
	maxInFlight int
}

func (f *fakeFetcher) FetchEntity(ctx context.Context, entityID int64, startPeriod, endPeriod string) ([]allocation.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, entityID)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.failing[entityID] {
		return nil, errors.New("entity unavailable")
	}

	return []allocation.Record{{
		PeriodKey: "2025-11",
		EntityID:  entityID,
		Allocated: decimal.NewFromInt(40),
	}}, nil
}

func TestPartition_Completeness(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		batchSize int
	}{
		{name: "empty input", count: 0, batchSize: 5},
		{name: "single batch", count: 3, batchSize: 5},
		{name: "exact multiple", count: 10, batchSize: 5},
		{name: "remainder batch", count: 11, batchSize: 5},
		{name: "batch size one", count: 7, batchSize: 1},
		{name: "batch size larger than input", count: 2, batchSize: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]int64, tt.count)
			for i := range ids {
				ids[i] = int64(i + 1)
			}

			batches := Partition(ids, tt.batchSize)

			var flattened []int64
			for _, batch := range batches {
				if len(batch) > tt.batchSize {
					t.Errorf("Batch of size %d exceeds limit %d", len(batch), tt.batchSize)
				}
				flattened = append(flattened, batch...)
			}

			if len(flattened) != len(ids) {
				t.Fatalf("Flattened %d ids, want %d", len(flattened), len(ids))
			}
			for i := range ids {
				if flattened[i] != ids[i] {
					t.Errorf("Position %d: got %d, want %d", i, flattened[i], ids[i])
				}
			}
		})
	}
}

func TestPartition_InvalidBatchSize(t *testing.T) {
	batches := Partition([]int64{1, 2, 3}, 0)

	var flattened []int64
	for _, batch := range batches {
		flattened = append(flattened, batch...)
	}
	if len(flattened) != 3 {
		t.Errorf("Flattened %d ids, want 3", len(flattened))
	}
}

func TestFetchAll_AllSucceed(t *testing.T) {
	fetcher := &fakeFetcher{}
	bf := NewBatchFetcher(fetcher, Config{BatchSize: 2, InterBatchDelay: time.Millisecond})

	records, err := bf.FetchAll(context.Background(), []int64{1, 2, 3, 4, 5}, "", "")
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(records) != 5 {
		t.Fatalf("Expected 5 records, got %d", len(records))
	}
	// Input order is preserved in the output
	for i, record := range records {
		if record.EntityID != int64(i+1) {
			t.Errorf("Position %d: entity %d, want %d", i, record.EntityID, i+1)
		}
	}
}

func TestFetchAll_PartialFailureTolerated(t *testing.T) {
	fetcher := &fakeFetcher{failing: map[int64]bool{2: true}}
	bf := NewBatchFetcher(fetcher, Config{BatchSize: 2, InterBatchDelay: time.Millisecond})

	records, err := bf.FetchAll(context.Background(), []int64{1, 2, 3}, "", "")
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].EntityID != 1 || records[1].EntityID != 3 {
		t.Errorf("Got entities %d, %d; want 1, 3", records[0].EntityID, records[1].EntityID)
	}
}

func TestFetchAll_ParallelWithinBatch(t *testing.T) {
	fetcher := &fakeFetcher{delay: 50 * time.Millisecond}
	bf := NewBatchFetcher(fetcher, Config{BatchSize: 4, InterBatchDelay: time.Millisecond})

	start := time.Now()
	_, err := bf.FetchAll(context.Background(), []int64{1, 2, 3, 4}, "", "")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if fetcher.maxInFlight < 2 {
		t.Errorf("maxInFlight = %d, batch requests should run in parallel", fetcher.maxInFlight)
	}
	// Serial execution of 4 entities would take >= 200ms
	if elapsed > 150*time.Millisecond {
		t.Errorf("Elapsed = %v, batch should complete in roughly one fetch duration", elapsed)
	}
}

func TestFetchAll_BatchesAreSequential(t *testing.T) {
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	bf := NewBatchFetcher(fetcher, Config{BatchSize: 2, InterBatchDelay: time.Millisecond})

	_, err := bf.FetchAll(context.Background(), []int64{1, 2, 3, 4}, "", "")
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	// With batch size 2 at most 2 requests may be in flight at once
	if fetcher.maxInFlight > 2 {
		t.Errorf("maxInFlight = %d, batches must not overlap", fetcher.maxInFlight)
	}

	// Batch 1's entities are requested before batch 2's
	seen := map[int64]int{}
	for i, id := range fetcher.calls {
		seen[id] = i
	}
	if seen[1] > seen[3] && seen[2] > seen[3] && seen[1] > seen[4] && seen[2] > seen[4] {
		t.Errorf("Batch order violated: call order %v", fetcher.calls)
	}
}

func TestFetchAll_InterBatchDelay(t *testing.T) {
	fetcher := &fakeFetcher{}
	delay := 60 * time.Millisecond
	bf := NewBatchFetcher(fetcher, Config{BatchSize: 1, InterBatchDelay: delay})

	start := time.Now()
	_, err := bf.FetchAll(context.Background(), []int64{1, 2, 3}, "", "")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	// Two inter-batch delays (not three): no pause after the final batch
	if elapsed < 2*delay {
		t.Errorf("Elapsed = %v, want at least %v", elapsed, 2*delay)
	}
	if elapsed > 3*delay {
		t.Errorf("Elapsed = %v, delay after the last batch should be skipped", elapsed)
	}
}

func TestFetchAll_EmptyInput(t *testing.T) {
	fetcher := &fakeFetcher{}
	bf := NewBatchFetcher(fetcher, DefaultConfig())

	records, err := bf.FetchAll(context.Background(), nil, "", "")
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("Expected no fetch calls, got %d", len(fetcher.calls))
	}
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	fetcher := &fakeFetcher{delay: 10 * time.Millisecond}
	bf := NewBatchFetcher(fetcher, Config{BatchSize: 1, InterBatchDelay: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	records, err := bf.FetchAll(ctx, []int64{1, 2, 3, 4, 5}, "", "")

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	// Partial results from before cancellation are returned
	if len(records) == 0 {
		t.Error("Expected partial results before cancellation")
	}
	if len(records) >= 5 {
		t.Errorf("Expected fewer than 5 records, got %d", len(records))
	}
}
