// Package logger wraps zerolog with the field conventions used across
// etlflow: a service tag, a component tag per package, and run/task/attempt
// fields attached by the executor.
//
//	log := logger.New(&cfg, "etlflow").WithComponent("executor")
//	log.Info("task succeeded", logger.Fields("task", "upload_to_gcs", "attempt", 2))
package logger
