package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key represents a unique identifier for a cached allocation API response.
type Key struct {
	// Endpoint is the API endpoint path (e.g., "/v1/allocations/4711")
	Endpoint string

	// PathParams are the path parameters (e.g., {"entity_id": "4711"})
	PathParams map[string]string

	// QueryParams are the query parameters (e.g., {"start_period": "2025-01"})
	QueryParams url.Values

	// EntityID is the employee ID for per-entity endpoints (0 for job endpoints)
	EntityID int64
}

// String generates a deterministic cache key string.
// Format: alloc:endpoint:param1=val1:query1=val1:entity=4711
//
// Example:
//
//	alloc:v1/allocations/4711:start_period=2025-01:entity=4711
func (k Key) String() string {
	parts := []string{"alloc"}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add path params (sorted for determinism)
	if len(k.PathParams) > 0 {
		pathKeys := make([]string, 0, len(k.PathParams))
		for key := range k.PathParams {
			pathKeys = append(pathKeys, key)
		}
		sort.Strings(pathKeys)

		for _, key := range pathKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.PathParams[key]))
		}
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	// Add entity ID for per-entity endpoints
	if k.EntityID > 0 {
		parts = append(parts, fmt.Sprintf("entity=%d", k.EntityID))
	}

	return strings.Join(parts, ":")
}
