// Package config loads etlflow configuration from a config.yml file, an
// optional .env file and the process environment.
//
// Values are layered in that order: YAML first, then environment variables
// (including those loaded from .env) override nested keys. An environment
// variable such as ETLFLOW_ETL_DESTINATION_TABLE_ID is matched against every
// plausible nesting of its underscore-separated parts, so it reaches
// etl.destination.table_id without an explicit binding.
//
//	var cfg AppConfig
//	err := config.LoadConfig("etlflow", &cfg, config.WithEnvPrefix("ETLFLOW"))
//
// Config structs embed ServiceConfig and implement ApplyDefaults and Validate.
package config
