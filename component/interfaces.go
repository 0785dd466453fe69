package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component represents a lifecycle-managed infrastructure component.
// Storage backends, warehouse loaders and run stores implement it.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information for the bootstrap display.
// Components that implement Describable return this to self-report
// what they are and how they're configured.
type Description struct {
	// Name is the display name (e.g. "Storage", "Warehouse").
	// If empty, the component's Name() is used.
	Name string
	// Component is the registered component name; the registry sets it.
	Component string
	// Type categorizes the component: "storage", "warehouse", "runstore" or "database".
	Type string
	// Details is a human-readable one-liner shown in the startup summary.
	// Example: "provider=gcs bucket=my-airflow-etl-bucket"
	Details string
}

// Describable is optionally implemented by Components to provide
// startup summary information for the bootstrap display.
//
// Components implementing it are listed in the startup summary.
type Describable interface {
	Describe() Description
}
