package etl

import (
	"fmt"
	"strings"

	"github.com/kbukum/etlflow/validation"
	"github.com/kbukum/etlflow/warehouse"
)

// Defaults for the etl_to_bq workflow.
const (
	DefaultSourcePath  = "/opt/airflow/data/raw_products.csv"
	DefaultCleanedPath = "/opt/airflow/data/products_cleaned.csv"
	DefaultObjectName  = "products_cleaned.csv"
	DefaultBucket      = "my-airflow-etl-bucket"
	DefaultProjectID   = "third-flare-464317-r8"
	DefaultDatasetID   = "demo_etl"
	DefaultTableID     = "products_cleaned"
	DefaultLocation    = "US"
)

// Config configures the workflow's three tasks.
type Config struct {
	SourcePath  string             `mapstructure:"source_path" json:"source_path" validate:"required"`
	CleanedPath string             `mapstructure:"cleaned_path" json:"cleaned_path" validate:"required"`
	ObjectName  string             `mapstructure:"object_name" json:"object_name" validate:"required"`
	Bucket      string             `mapstructure:"bucket" json:"bucket" validate:"required"`
	Destination warehouse.TableRef `mapstructure:"destination" json:"destination" validate:"-"`
	Location    string             `mapstructure:"location" json:"location"`
	Load        LoadConfig         `mapstructure:"load" json:"load"`
}

// LoadConfig holds the load job settings. Nil pointers take the defaults.
type LoadConfig struct {
	SourceFormat     string `mapstructure:"source_format" json:"source_format"`
	Autodetect       *bool  `mapstructure:"autodetect" json:"autodetect"`
	SkipLeadingRows  *int   `mapstructure:"skip_leading_rows" json:"skip_leading_rows" validate:"omitempty,gte=0"`
	WriteDisposition string `mapstructure:"write_disposition" json:"write_disposition"`
}

// ApplyDefaults fills unset fields with the etl_to_bq defaults.
func (c *Config) ApplyDefaults() {
	setDefault(&c.SourcePath, DefaultSourcePath)
	setDefault(&c.CleanedPath, DefaultCleanedPath)
	setDefault(&c.ObjectName, DefaultObjectName)
	setDefault(&c.Bucket, DefaultBucket)
	setDefault(&c.Destination.ProjectID, DefaultProjectID)
	setDefault(&c.Destination.DatasetID, DefaultDatasetID)
	setDefault(&c.Destination.TableID, DefaultTableID)
	setDefault(&c.Location, DefaultLocation)

	setDefault(&c.Load.SourceFormat, string(warehouse.FormatCSV))
	setDefault(&c.Load.WriteDisposition, string(warehouse.WriteTruncate))
	c.Load.SourceFormat = strings.ToUpper(c.Load.SourceFormat)
	c.Load.WriteDisposition = strings.ToUpper(c.Load.WriteDisposition)
	if c.Load.Autodetect == nil {
		autodetect := true
		c.Load.Autodetect = &autodetect
	}
	if c.Load.SkipLeadingRows == nil {
		skip := 1
		c.Load.SkipLeadingRows = &skip
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks the configuration, including the load job it produces.
func (c *Config) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(c))
	if _, err := c.LoadJob("gs://" + c.Bucket + "/" + c.ObjectName); err != nil {
		v.Merge("", err)
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("etl: %w", err)
	}
	return nil
}

// LoadJob returns the load job for the staged object at uri.
func (c *Config) LoadJob(uri string) (warehouse.LoadJob, error) {
	job := warehouse.LoadJob{
		SourceURIs:       []string{uri},
		Destination:      c.Destination,
		SourceFormat:     warehouse.SourceFormat(c.Load.SourceFormat),
		WriteDisposition: warehouse.WriteDisposition(c.Load.WriteDisposition),
		Location:         c.Location,
	}
	if c.Load.Autodetect != nil {
		job.Autodetect = *c.Load.Autodetect
	}
	if c.Load.SkipLeadingRows != nil {
		job.SkipLeadingRows = *c.Load.SkipLeadingRows
	}
	return warehouse.NewLoadJob(job)
}
