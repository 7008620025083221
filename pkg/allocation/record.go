// Package allocation defines the project-allocation domain types and the
// pure aggregation step that groups allocation records by calendar month.
package allocation

import (
	"github.com/shopspring/decimal"
)

// Record is a single project-allocation row for one employee and one month.
type Record struct {
	// PeriodKey is the calendar month the allocation applies to (e.g. "2025-11").
	PeriodKey string `json:"period_key"`

	// EntityID is the employee identifier the allocation belongs to.
	EntityID int64 `json:"entity_id"`

	// EntityName is the display name of the employee.
	EntityName string `json:"entity_name"`

	// ProjectName is the project the hours are allocated to.
	ProjectName string `json:"project_name"`

	// ClientName is the client the project is billed against.
	ClientName string `json:"client_name"`

	// Allocated is the amount allocated for the period.
	Allocated decimal.Decimal `json:"allocated_amount"`

	// Remaining is the amount still unconsumed for the period.
	Remaining decimal.Decimal `json:"remaining_amount"`
}

// EntryStatus is the per-entity outcome reported by the bulk job results endpoint.
type EntryStatus string

const (
	// EntrySuccess marks an entity whose allocations were fetched successfully.
	EntrySuccess EntryStatus = "success"

	// EntryError marks an entity the server could not fetch; its payload is meaningless.
	EntryError EntryStatus = "error"
)

// ResultEntry is one entity's slice of a bulk job result.
type ResultEntry struct {
	EntityID    int64       `json:"entity_id"`
	Status      EntryStatus `json:"status"`
	Allocations []Record    `json:"allocations"`
}

// Grouped maps a period key to the allocation records discovered for that month.
// This is the final shape consumed by report rendering and CSV export.
type Grouped map[string][]Record
