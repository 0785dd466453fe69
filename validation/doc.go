// Package validation validates configuration and job structs.
//
// Struct tags are checked with go-playground/validator; field names in
// messages follow the mapstructure tag so they match the config file keys.
//
//	type LoadOptions struct {
//	    SourceFormat string `mapstructure:"source_format" validate:"required,oneof=CSV NEWLINE_DELIMITED_JSON"`
//	}
//	err := validation.Validate(opts)
//
// For rules that tags cannot express, collect errors programmatically:
//
//	v := validation.New()
//	v.Required("bucket", cfg.Bucket).Custom(cfg.Skip >= 0, "skip_leading_rows", "must not be negative")
//	err := v.Err()
package validation
