package warehouse

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/etlflow/storage"
	"github.com/kbukum/etlflow/validation"
)

// SourceFormat is the encoding of the staged objects.
type SourceFormat string

const (
	FormatCSV  SourceFormat = "CSV"
	FormatJSON SourceFormat = "NEWLINE_DELIMITED_JSON"
)

// WriteDisposition controls what happens to existing table data.
type WriteDisposition string

const (
	// WriteTruncate replaces the table contents. Re-running such a load is idempotent.
	WriteTruncate WriteDisposition = "WRITE_TRUNCATE"
	WriteAppend   WriteDisposition = "WRITE_APPEND"
	// WriteEmpty fails unless the table is empty.
	WriteEmpty WriteDisposition = "WRITE_EMPTY"
)

// CreateDisposition controls whether a missing table is created.
type CreateDisposition string

const (
	CreateIfNeeded CreateDisposition = "CREATE_IF_NEEDED"
	CreateNever    CreateDisposition = "CREATE_NEVER"
)

// TableRef identifies a destination table.
type TableRef struct {
	ProjectID string `json:"project_id" mapstructure:"project_id" yaml:"project_id" validate:"required,identifier"`
	DatasetID string `json:"dataset_id" mapstructure:"dataset_id" yaml:"dataset_id" validate:"required,identifier"`
	TableID   string `json:"table_id" mapstructure:"table_id" yaml:"table_id" validate:"required,identifier"`
}

// String returns project.dataset.table.
func (t TableRef) String() string {
	return t.ProjectID + "." + t.DatasetID + "." + t.TableID
}

// LoadJob describes one load into a warehouse table.
type LoadJob struct {
	SourceURIs        []string          `json:"source_uris" validate:"required,min=1,dive,required"`
	Destination       TableRef          `json:"destination"`
	SourceFormat      SourceFormat      `json:"source_format" validate:"oneof=CSV NEWLINE_DELIMITED_JSON"`
	Autodetect        bool              `json:"autodetect"`
	SkipLeadingRows   int               `json:"skip_leading_rows" validate:"gte=0"`
	WriteDisposition  WriteDisposition  `json:"write_disposition" validate:"oneof=WRITE_TRUNCATE WRITE_APPEND WRITE_EMPTY"`
	CreateDisposition CreateDisposition `json:"create_disposition" validate:"oneof=CREATE_IF_NEEDED CREATE_NEVER"`
	Location          string            `json:"location,omitempty"`
}

// NewLoadJob fills unset settings with the warehouse defaults (CSV,
// WRITE_APPEND, CREATE_IF_NEEDED) and validates the job.
func NewLoadJob(job LoadJob) (LoadJob, error) {
	job.SourceURIs = append([]string(nil), job.SourceURIs...)
	if job.SourceFormat == "" {
		job.SourceFormat = FormatCSV
	}
	if job.WriteDisposition == "" {
		job.WriteDisposition = WriteAppend
	}
	if job.CreateDisposition == "" {
		job.CreateDisposition = CreateIfNeeded
	}
	job.SourceFormat = SourceFormat(strings.ToUpper(string(job.SourceFormat)))
	job.WriteDisposition = WriteDisposition(strings.ToUpper(string(job.WriteDisposition)))
	job.CreateDisposition = CreateDisposition(strings.ToUpper(string(job.CreateDisposition)))

	if err := job.Validate(); err != nil {
		return LoadJob{}, err
	}
	return job, nil
}

// Validate checks the struct tags and that every source URI is a parseable
// object URI.
func (j LoadJob) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(j))
	for i, uri := range j.SourceURIs {
		if uri == "" {
			continue
		}
		if _, err := storage.ParseObjectURI(uri); err != nil {
			v.AddError(fmt.Sprintf("source_uris[%d]", i), "must be a gs://, s3:// or file:// object URI")
		}
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("warehouse: invalid load job: %w", err)
	}
	return nil
}

// JobResult reports a completed load.
type JobResult struct {
	JobID       string    `json:"job_id"`
	Destination TableRef  `json:"destination"`
	RowsLoaded  int64     `json:"rows_loaded"`
	Location    string    `json:"location,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}
