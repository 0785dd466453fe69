// Package errors provides the structured error type shared by the workflow
// packages. Every AppError carries a machine-readable code and a retryable
// flag that the executor and the collaborator clients agree on.
package errors
