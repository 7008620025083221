// Package fanout implements the degraded fetch strategy for allocation reports.
//
// When the bulk job API cannot be used, the same entity set is fetched
// one entity at a time: entities are partitioned into contiguous batches,
// all requests within a batch run in parallel, batches run strictly in
// sequence with a fixed delay between them. A single entity failing only
// removes that entity's rows from the report.
//
// Usage:
//
//	fetcher := fanout.NewBatchFetcher(entityClient, fanout.DefaultConfig())
//	records, err := fetcher.FetchAll(ctx, entityIDs, "2025-01", "2025-12")
//	grouped := allocation.Group(records)
package fanout
