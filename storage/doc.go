// Package storage provides object storage with pluggable backends.
//
// Backends register themselves on import:
//
//   - storage/local: a directory per bucket on the local filesystem
//   - storage/s3: Amazon S3 and S3-compatible services
//   - storage/gcs: Google Cloud Storage
//
// # Configuration
//
//	storage:
//	  enabled: true
//	  provider: "gcs"
//	  bucket: "my-airflow-etl-bucket"
//	  project_id: "third-flare-464317-r8"
package storage
