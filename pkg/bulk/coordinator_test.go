package bulk

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/staffbridge/allocation-client/internal/testutil"
	"github.com/staffbridge/allocation-client/pkg/fanout"
)

func newTestCoordinator(mock *testutil.MockAllocAPI) *Coordinator {
	return NewCoordinator(
		NewClient(newPlainDoer(mock.URL())),
		fanout.Config{BatchSize: 2, InterBatchDelay: time.Millisecond, Timeout: time.Second},
		fastPoll(10),
	)
}

func TestRefresh_EmptyEntitySet(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()

	coord := newTestCoordinator(mock)

	grouped, err := coord.Refresh(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(grouped) != 0 {
		t.Errorf("Expected empty grouping, got %d periods", len(grouped))
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("Expected no network calls, got %d", mock.GetRequestCount())
	}

	snapshot, ok := coord.Latest()
	if !ok {
		t.Fatal("Expected a published snapshot")
	}
	if len(snapshot.Grouped) != 0 {
		t.Errorf("Snapshot has %d periods, want 0", len(snapshot.Grouped))
	}
}

func TestRefresh_HappyPath(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetJobSubmission("abc")
	mock.SetJobStatusSequence("abc", []string{"running", "completed"})
	mock.SetJobResults("abc", `{"results":[
		{"entity_id":1,"status":"success","allocations":[{"period_key":"2025-11","entity_id":1,"entity_name":"Jordan","project_name":"Atlas","client_name":"Acme","allocated_amount":40,"remaining_amount":8}]},
		{"entity_id":2,"status":"error"}
	]}`)

	coord := newTestCoordinator(mock)

	grouped, err := coord.Refresh(context.Background(), Request{EntityIDs: []int64{1, 2}})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	records := grouped["2025-11"]
	if len(records) != 1 {
		t.Fatalf("Expected 1 record for 2025-11, got %d", len(records))
	}
	if records[0].EntityID != 1 {
		t.Errorf("Record from entity %d, want entity 1 only", records[0].EntityID)
	}

	// No fallback traffic on the happy path
	if got := mock.PathCount("/v1/allocations/1"); got != 0 {
		t.Errorf("Fallback endpoint called %d times, want 0", got)
	}

	snapshot, ok := coord.Latest()
	if !ok {
		t.Fatal("Expected a published snapshot")
	}
	if snapshot.Source != SourceBulk {
		t.Errorf("Source = %q, want bulk", snapshot.Source)
	}
}

func TestRefresh_FallbackOnSubmissionFailure(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetResponse("/v1/allocation-jobs", testutil.NewServerErrorResponse())
	// Entity 1's individual fetch also fails; entity 2 succeeds
	mock.SetResponse("/v1/allocations/1", testutil.NewServerErrorResponse())
	mock.SetEntityAllocations(2, `[{"period_key":"2025-11","entity_id":2,"entity_name":"Sam","project_name":"Orion","client_name":"Globex","allocated_amount":32,"remaining_amount":4}]`)

	coord := newTestCoordinator(mock)

	grouped, err := coord.Refresh(context.Background(), Request{EntityIDs: []int64{1, 2}})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	records := grouped["2025-11"]
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].EntityID != 2 {
		t.Errorf("Record from entity %d, want entity 2", records[0].EntityID)
	}

	snapshot, ok := coord.Latest()
	if !ok {
		t.Fatal("Expected a published snapshot")
	}
	if snapshot.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", snapshot.Source)
	}
}

func TestRefresh_FallbackOnJobFailure(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetJobSubmission("abc")
	mock.SetJobStatusSequence("abc", []string{"failed"})
	mock.SetEntityAllocations(1, `[{"period_key":"2025-10","entity_id":1,"project_name":"Atlas","client_name":"Acme","allocated_amount":16,"remaining_amount":2}]`)

	coord := newTestCoordinator(mock)

	grouped, err := coord.Refresh(context.Background(), Request{EntityIDs: []int64{1}})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(grouped["2025-10"]) != 1 {
		t.Errorf("Expected 1 record from fallback, got %d", len(grouped["2025-10"]))
	}

	// The failed job is abandoned, never re-polled
	if got := mock.PathCount("/v1/allocation-jobs/abc"); got != 1 {
		t.Errorf("Status endpoint polled %d times after failure, want 1", got)
	}
}

func TestRefresh_FallbackOnPollTimeout(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetJobSubmission("abc")
	mock.SetJobStatusSequence("abc", []string{"running"})
	mock.SetEntityAllocations(1, `[{"period_key":"2025-10","entity_id":1,"project_name":"Atlas","client_name":"Acme","allocated_amount":16,"remaining_amount":2}]`)

	coord := newTestCoordinator(mock)

	grouped, err := coord.Refresh(context.Background(), Request{EntityIDs: []int64{1}})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(grouped["2025-10"]) != 1 {
		t.Errorf("Expected 1 record from fallback, got %d", len(grouped["2025-10"]))
	}
}

func TestRefresh_StaleCycleDoesNotOverwrite(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetJobSubmission("slow-job")
	// The slow cycle spends ~100ms in its status poll
	mock.SetHandler("/v1/allocation-jobs/slow-job", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"completed","completed_requests":1,"total_requests":1}`))
	})
	mock.SetJobResults("slow-job", `{"results":[
		{"entity_id":1,"status":"success","allocations":[{"period_key":"2025-09","entity_id":1,"project_name":"Atlas","client_name":"Acme","allocated_amount":8,"remaining_amount":1}]}
	]}`)

	coord := newTestCoordinator(mock)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := coord.Refresh(context.Background(), Request{EntityIDs: []int64{1}}); err != nil {
			t.Errorf("slow Refresh() error = %v", err)
		}
	}()

	// Let the slow cycle get in flight, then dispatch a newer one
	time.Sleep(20 * time.Millisecond)
	if _, err := coord.Refresh(context.Background(), Request{}); err != nil {
		t.Fatalf("fast Refresh() error = %v", err)
	}
	wg.Wait()

	// The newer (empty) cycle owns the snapshot; the slow cycle's results
	// were discarded even though it finished last
	snapshot, ok := coord.Latest()
	if !ok {
		t.Fatal("Expected a published snapshot")
	}
	if len(snapshot.Grouped) != 0 {
		t.Errorf("Stale cycle overwrote the latest snapshot: %+v", snapshot.Grouped)
	}
}
