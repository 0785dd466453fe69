package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/etlflow/component"
)

// Summary renders the startup banner.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	details         []string
}

// NewSummary creates a summary for a service.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// AddDetail adds a free-form line, e.g. the graph about to run.
func (s *Summary) AddDetail(format string, args ...any) {
	s.details = append(s.details, fmt.Sprintf(format, args...))
}

// Write prints the banner, one line per described component with its live
// health, then the extra details.
func (s *Summary) Write(ctx context.Context, w io.Writer, registry *component.Registry) {
	var b strings.Builder
	version := s.version
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(&b, "\n%s %s started in %.2fs\n", s.serviceName, version, s.startupDuration.Seconds())

	if registry != nil {
		health := make(map[string]component.Health)
		for _, h := range registry.HealthAll(ctx) {
			health[h.Name] = h
		}

		descs := registry.Descriptions()
		if len(descs) > 0 {
			b.WriteString("Components\n")
		}
		for i, d := range descs {
			prefix := "├──"
			if i == len(descs)-1 {
				prefix = "└──"
			}
			status := component.HealthStatus("unknown")
			if h, ok := health[d.Component]; ok {
				status = h.Status
			}
			fmt.Fprintf(&b, "   %s %s %s [%s] %s\n", prefix, healthStatusIcon(status), d.Name, d.Type, d.Details)
		}
	}

	for _, line := range s.details {
		fmt.Fprintf(&b, "%s\n", line)
	}
	b.WriteString("\n")
	_, _ = io.WriteString(w, b.String())
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
