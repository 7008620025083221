// Package testutil provides testing utilities for the allocation API client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock allocation API endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAllocAPI is a configurable mock allocation API server for testing.
type MockAllocAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	pathCounts        map[string]int
	LastRequestHeader http.Header
}

// NewMockAllocAPI creates a new mock allocation API server.
func NewMockAllocAPI() *MockAllocAPI {
	mock := &MockAllocAPI{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.pathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAllocAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAllocAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAllocAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.pathCounts = make(map[string]int)
	m.LastRequestHeader = nil
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAllocAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// PathCount returns the number of requests made to a specific path.
func (m *MockAllocAPI) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAllocAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAllocAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJobSubmission configures the job creation endpoint to accept submissions
// and hand out the given request ID.
func (m *MockAllocAPI) SetJobSubmission(requestID string) {
	m.SetResponse("/v1/allocation-jobs", MockResponse{
		StatusCode: http.StatusCreated,
		Body:       fmt.Sprintf(`{"request_id":%q}`, requestID),
		Headers:    rateLimitHeaders(),
	})
}

// SetJobStatusSequence configures the job status endpoint to walk through the
// given states on successive polls, sticking on the last one.
func (m *MockAllocAPI) SetJobStatusSequence(requestID string, states []string) {
	var mu sync.Mutex
	poll := 0

	m.SetHandler("/v1/allocation-jobs/"+requestID, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		state := states[len(states)-1]
		if poll < len(states) {
			state = states[poll]
		}
		poll++
		completed := poll
		mu.Unlock()

		for key, value := range rateLimitHeaders() {
			w.Header().Set(key, value)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":%q,"completed_requests":%d,"total_requests":%d}`, state, completed, len(states))
	})
}

// SetJobResults configures the job results endpoint for the given request ID.
func (m *MockAllocAPI) SetJobResults(requestID, body string) {
	m.SetResponse("/v1/allocation-jobs/"+requestID+"/results", MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    rateLimitHeaders(),
	})
}

// SetEntityAllocations configures the per-entity fallback endpoint for one entity.
func (m *MockAllocAPI) SetEntityAllocations(entityID int64, body string) {
	m.SetResponse(fmt.Sprintf("/v1/allocations/%d", entityID), MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    rateLimitHeaders(),
	})
}

// defaultHandler provides default API-like responses.
func (m *MockAllocAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	for key, value := range rateLimitHeaders() {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func rateLimitHeaders() map[string]string {
	return map[string]string{
		"X-RateLimit-Remaining": "100",
		"X-RateLimit-Reset":     "60",
	}
}

// NewHealthyResponse creates a standard 200 OK response with rate limit headers.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "100",
			"X-RateLimit-Reset":     "60",
			"ETag":                  `"test-etag-123"`,
			"Expires":               time.Now().Add(5 * time.Minute).Format(http.TimeFormat),
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "5",
			"X-RateLimit-Reset":     "30",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "95",
			"X-RateLimit-Reset":     "60",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}
