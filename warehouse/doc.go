// Package warehouse loads staged objects into warehouse tables.
//
// A LoadJob names the staged URIs, the destination table and the load
// settings (format, header rows, schema autodetection, dispositions). Jobs
// are validated when built with NewLoadJob, so an unknown format or
// disposition never reaches a backend.
//
// Backends register themselves on import:
//
//   - warehouse/bigquery: BigQuery load jobs from gs:// references
//   - warehouse/sqlwarehouse: GORM tables fed from any storage backend
package warehouse
