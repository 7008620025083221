package bulk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/staffbridge/allocation-client/internal/testutil"
)

func fastPoll(maxAttempts int) PollConfig {
	return PollConfig{Interval: time.Millisecond, MaxAttempts: maxAttempts}
}

func TestPoll_EarlyExitOnCompleted(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetJobStatusSequence("job-1", []string{"pending", "pending", "completed"})

	c := NewClient(newPlainDoer(mock.URL()))

	status, err := c.Poll(context.Background(), JobHandle{RequestID: "job-1"}, fastPoll(60))
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if status.State != StateCompleted {
		t.Errorf("State = %q, want completed", status.State)
	}
	// Exactly 3 polls: completion short-circuits the remaining budget
	if got := mock.PathCount("/v1/allocation-jobs/job-1"); got != 3 {
		t.Errorf("Status endpoint polled %d times, want 3", got)
	}
}

func TestPoll_JobFailedReturnsImmediately(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetJobStatusSequence("job-1", []string{"running", "failed"})

	c := NewClient(newPlainDoer(mock.URL()))

	_, err := c.Poll(context.Background(), JobHandle{RequestID: "job-1"}, fastPoll(60))
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("Expected ErrJobFailed, got %v", err)
	}
	if got := mock.PathCount("/v1/allocation-jobs/job-1"); got != 2 {
		t.Errorf("Status endpoint polled %d times, want 2", got)
	}
}

func TestPoll_TimeoutAfterMaxAttempts(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetJobStatusSequence("job-1", []string{"running"})

	c := NewClient(newPlainDoer(mock.URL()))

	_, err := c.Poll(context.Background(), JobHandle{RequestID: "job-1"}, fastPoll(5))
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Expected ErrPollTimeout, got %v", err)
	}
	// Terminates after exactly MaxAttempts polls
	if got := mock.PathCount("/v1/allocation-jobs/job-1"); got != 5 {
		t.Errorf("Status endpoint polled %d times, want 5", got)
	}
}

func TestPoll_TransportErrorsCountAgainstBudget(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetResponse("/v1/allocation-jobs/job-1", testutil.NewServerErrorResponse())

	c := NewClient(newPlainDoer(mock.URL()))

	_, err := c.Poll(context.Background(), JobHandle{RequestID: "job-1"}, fastPoll(3))
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Expected ErrPollTimeout, got %v", err)
	}
	if got := mock.PathCount("/v1/allocation-jobs/job-1"); got != 3 {
		t.Errorf("Status endpoint polled %d times, want 3", got)
	}
}

func TestPoll_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockAllocAPI()
	defer mock.Close()
	mock.SetJobStatusSequence("job-1", []string{"running"})

	c := NewClient(newPlainDoer(mock.URL()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Poll(ctx, JobHandle{RequestID: "job-1"}, PollConfig{Interval: time.Second, MaxAttempts: 60})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
