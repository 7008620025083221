package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/staffbridge/allocation-client/pkg/allocation"
)

// Prometheus metrics for the bulk workflow.
var (
	bulkJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alloc_bulk_jobs_total",
		Help: "Total bulk allocation jobs by outcome",
	}, []string{"outcome"}) // "completed", "failed", "timeout", "submit_error"

	bulkPollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alloc_bulk_polls_total",
		Help: "Total bulk job status polls",
	})
)

// Doer is the HTTP surface the workflow needs from the core client.
// *client.Client satisfies it.
type Doer interface {
	Get(ctx context.Context, endpoint string) (*http.Response, error)
	Post(ctx context.Context, endpoint string, payload any) (*http.Response, error)
}

// Client drives the bulk allocation job endpoints.
type Client struct {
	api    Doer
	logger zerolog.Logger
}

// NewClient creates a bulk workflow client on top of the core API client.
func NewClient(api Doer) *Client {
	return &Client{
		api:    api,
		logger: log.With().Str("component", "bulk").Logger(),
	}
}

// Submit creates a bulk allocation job for the given request.
// The full entity set goes into a single POST; chunking is server-side.
// Any transport error or non-2xx response yields ErrSubmitFailed.
func (c *Client) Submit(ctx context.Context, req Request) (JobHandle, error) {
	if len(req.EntityIDs) == 0 {
		return JobHandle{}, fmt.Errorf("%w: empty entity set", ErrSubmitFailed)
	}
	if req.BatchSize <= 0 {
		req.BatchSize = DefaultBatchSize
	}

	resp, err := c.api.Post(ctx, "/v1/allocation-jobs", req)
	if err != nil {
		bulkJobsTotal.WithLabelValues("submit_error").Inc()
		return JobHandle{}, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bulkJobsTotal.WithLabelValues("submit_error").Inc()
		return JobHandle{}, fmt.Errorf("%w: unexpected status %d", ErrSubmitFailed, resp.StatusCode)
	}

	var handle JobHandle
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		bulkJobsTotal.WithLabelValues("submit_error").Inc()
		return JobHandle{}, fmt.Errorf("%w: decode response: %v", ErrSubmitFailed, err)
	}
	if handle.RequestID == "" {
		bulkJobsTotal.WithLabelValues("submit_error").Inc()
		return JobHandle{}, fmt.Errorf("%w: empty request id", ErrSubmitFailed)
	}

	c.logger.Info().
		Str("request_id", handle.RequestID).
		Int("entities", len(req.EntityIDs)).
		Int("batch_size", req.BatchSize).
		Msg("Bulk job submitted")

	return handle, nil
}

// GetStatus fetches one status snapshot for a job.
func (c *Client) GetStatus(ctx context.Context, handle JobHandle) (JobStatus, error) {
	bulkPollsTotal.Inc()

	resp, err := c.api.Get(ctx, "/v1/allocation-jobs/"+url.PathEscape(handle.RequestID))
	if err != nil {
		return JobStatus{}, fmt.Errorf("get job status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return JobStatus{}, fmt.Errorf("get job status: unexpected status %d", resp.StatusCode)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return JobStatus{}, fmt.Errorf("decode job status: %w", err)
	}

	return status, nil
}

// FetchResults retrieves the per-entity results of a completed job.
func (c *Client) FetchResults(ctx context.Context, handle JobHandle) ([]allocation.ResultEntry, error) {
	resp, err := c.api.Get(ctx, "/v1/allocation-jobs/"+url.PathEscape(handle.RequestID)+"/results")
	if err != nil {
		return nil, fmt.Errorf("fetch job results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch job results: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Results []allocation.ResultEntry `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode job results: %w", err)
	}

	return payload.Results, nil
}

// FetchEntity fetches one entity's allocation records via the per-entity
// endpoint. This implements fanout.EntityFetcher for the fallback path.
func (c *Client) FetchEntity(ctx context.Context, entityID int64, startPeriod, endPeriod string) ([]allocation.Record, error) {
	endpoint := fmt.Sprintf("/v1/allocations/%d", entityID)

	query := url.Values{}
	if startPeriod != "" {
		query.Set("start_period", startPeriod)
	}
	if endPeriod != "" {
		query.Set("end_period", endPeriod)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	resp, err := c.api.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch entity %d: %w", entityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch entity %d: unexpected status %d", entityID, resp.StatusCode)
	}

	var records []allocation.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode entity %d allocations: %w", entityID, err)
	}

	return records, nil
}
