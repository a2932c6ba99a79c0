// Package metrics provides Prometheus metrics collection for the connector.
//
// Collection is optional: if InitRegistry is never called, the constructors
// return nil and the connector falls back to its built-in no-op
// implementation with zero overhead.
//
// Usage:
//
//	// Initialize the global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create the connector's metrics sink
//	sink := metrics.NewConnectorMetrics()
//
//	// Or pass nil for no-op behavior
//	conn, err := connector.New(cfg, factory, cat, nil, nil, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry. Written once through
	// registryOnce, read many.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. It must run
// before any metrics constructors; calling it more than once is a no-op.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil when metrics are
// disabled (InitRegistry was never called).
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
