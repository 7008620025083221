// Package export serializes grouped allocations into flat report formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/staffbridge/allocation-client/pkg/allocation"
)

// rowKey identifies one report row: an employee's work on one project for one client.
type rowKey struct {
	entityID int64
	project  string
	client   string
}

// WriteCSV writes the grouped allocations as CSV. One row per distinct
// (entity, project, client) combination; for every period present in the
// input the row carries an allocated and a remaining column. Period columns
// are sorted so exports are deterministic; cells for periods an entity has no
// record in are left empty.
func WriteCSV(w io.Writer, grouped allocation.Grouped) error {
	periods := make([]string, 0, len(grouped))
	for period := range grouped {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	// Collect rows, keeping one record per (row, period)
	type cell struct {
		allocated string
		remaining string
	}
	rows := make(map[rowKey]map[string]cell)
	names := make(map[rowKey]string)

	for _, period := range periods {
		for _, record := range grouped[period] {
			key := rowKey{
				entityID: record.EntityID,
				project:  record.ProjectName,
				client:   record.ClientName,
			}
			if rows[key] == nil {
				rows[key] = make(map[string]cell)
				names[key] = record.EntityName
			}
			rows[key][period] = cell{
				allocated: record.Allocated.String(),
				remaining: record.Remaining.String(),
			}
		}
	}

	keys := make([]rowKey, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].entityID != keys[j].entityID {
			return keys[i].entityID < keys[j].entityID
		}
		if keys[i].project != keys[j].project {
			return keys[i].project < keys[j].project
		}
		return keys[i].client < keys[j].client
	})

	cw := csv.NewWriter(w)

	header := []string{"entity_name", "project_name", "client_name"}
	for _, period := range periods {
		header = append(header, period+"_allocated", period+"_remaining")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, key := range keys {
		row := []string{names[key], key.project, key.client}
		for _, period := range periods {
			c := rows[key][period]
			row = append(row, c.allocated, c.remaining)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
