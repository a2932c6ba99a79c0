package connector

import "time"

// Metrics receives connector operation outcomes for observability.
//
// Implementations must be safe for concurrent use. Passing nil to New
// disables collection entirely; the connector substitutes a no-op
// implementation so call sites never check for nil.
type Metrics interface {
	// DatasetDiscovered records a successful discovery and the format and
	// split count of the resulting descriptor.
	DatasetDiscovered(format string, splits int, duration time.Duration)

	// DiscoveryFailed records a failed discovery. Reason is one of
	// "sandbox", "authorization" or "io".
	DiscoveryFailed(reason string)

	// FreshnessChecked records a freshness check and its outcome.
	FreshnessChecked(status UpdateStatus, duration time.Duration)

	// AccessVerified records a permission verification and whether the
	// dataset was granted, along with the number of paths probed.
	AccessVerified(granted bool, probes int, duration time.Duration)

	// TableDropped records a successful drop.
	TableDropped()

	// ViewOperation records a successful view operation: "create", "get"
	// or "drop".
	ViewOperation(op string)
}

type noopMetrics struct{}

func (noopMetrics) DatasetDiscovered(string, int, time.Duration) {}
func (noopMetrics) DiscoveryFailed(string)                       {}
func (noopMetrics) FreshnessChecked(UpdateStatus, time.Duration) {}
func (noopMetrics) AccessVerified(bool, int, time.Duration)      {}
func (noopMetrics) TableDropped()                                {}
func (noopMetrics) ViewOperation(string)                         {}
