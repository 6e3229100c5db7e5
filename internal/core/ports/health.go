package ports

import "context"

// HealthChecker probes one backing dependency for GET /health.
type HealthChecker interface {
	Name() string                   // key in the health report, e.g. "postgresql"
	Ping(ctx context.Context) error // nil when usable
}
