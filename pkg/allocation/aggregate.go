package allocation

import (
	"github.com/rs/zerolog/log"
)

// Aggregate groups bulk job result entries by period key.
// Entries with a non-success status contribute nothing and are logged only;
// they must never surface as partial rows in the aggregate.
// Records are appended in traversal order of the input.
func Aggregate(entries []ResultEntry) Grouped {
	grouped := make(Grouped)

	for _, entry := range entries {
		if entry.Status != EntrySuccess {
			log.Debug().
				Int64("entity_id", entry.EntityID).
				Str("status", string(entry.Status)).
				Msg("Dropping non-success result entry")
			continue
		}

		for _, record := range entry.Allocations {
			grouped[record.PeriodKey] = append(grouped[record.PeriodKey], record)
		}
	}

	return grouped
}

// Group groups a flat record list by period key.
// The fallback fetch path has no per-entity success wrapper, so it feeds
// its records through here instead of Aggregate.
func Group(records []Record) Grouped {
	grouped := make(Grouped)

	for _, record := range records {
		grouped[record.PeriodKey] = append(grouped[record.PeriodKey], record)
	}

	return grouped
}
