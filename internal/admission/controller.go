// Package admission decides whether a new worker process may be spawned,
// based on an active-worker cap and an aggregate observed RSS threshold.
package admission

import (
	"log/slog"

	"github.com/corvid-systems/lintsched/pkg/units"
)

// percentDivisor converts a percentage value into a fraction.
const percentDivisor = 100.0

// Default limits, matching the container-budget proportional-allocation
// conventions used for other memory-aware knobs in this codebase.
const (
	DefaultMaxWorkers           = 2
	DefaultContainerLimitMB     = 4096
	DefaultThresholdPercent     = 75.0
)

// Limits configures the Controller.
type Limits struct {
	// MaxWorkers is the hard cap on concurrently active workers,
	// independent of the RSS threshold.
	MaxWorkers int

	// ContainerLimitBytes is the total memory budget the threshold is a
	// percentage of.
	ContainerLimitBytes int64

	// ThresholdPercent is the percentage of ContainerLimitBytes that
	// total observed RSS must stay under to admit a new worker.
	ThresholdPercent float64
}

// DefaultLimits returns the documented defaults: MAX_WORKERS=2,
// CONTAINER_LIMIT_MB=4096, MEM_THRESHOLD_PERCENT=75.
func DefaultLimits() Limits {
	return Limits{
		MaxWorkers:          DefaultMaxWorkers,
		ContainerLimitBytes: DefaultContainerLimitMB * units.MiB,
		ThresholdPercent:    DefaultThresholdPercent,
	}
}

// Controller is a pure function of (activeCount, totalObservedRSS,
// limits); it holds no runtime state of its own.
type Controller struct {
	limits Limits
}

// NewController builds a Controller from limits, warning once (via the
// given logger) if the byte threshold is degenerate and will never
// block admission on its own.
func NewController(limits Limits, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	if limits.ContainerLimitBytes <= 0 || limits.ThresholdPercent <= 0 {
		logger.Warn("admission: memory threshold disabled, falling back to worker-count cap only",
			slog.Int64("container_limit_bytes", limits.ContainerLimitBytes),
			slog.Float64("threshold_percent", limits.ThresholdPercent),
		)
	}

	return &Controller{limits: limits}
}

// ThresholdBytes is the absolute RSS ceiling derived from the configured
// container limit and threshold percentage. Returns 0 (meaning
// "disabled") when either input is non-positive.
func (c *Controller) ThresholdBytes() int64 {
	if c.limits.ContainerLimitBytes <= 0 || c.limits.ThresholdPercent <= 0 {
		return 0
	}

	return int64(float64(c.limits.ContainerLimitBytes) * c.limits.ThresholdPercent / percentDivisor)
}

// Admit reports whether a new worker may be spawned given the current
// number of active workers and the total RSS observed across them.
// A newly admitted worker is charged zero RSS until its first memory
// sample arrives; MaxWorkers exists as an independent cap precisely to
// bound the resulting transient over-admission.
func (c *Controller) Admit(activeCount int, totalObservedRSS int64) bool {
	if activeCount >= c.limits.MaxWorkers {
		return false
	}

	threshold := c.ThresholdBytes()
	if threshold <= 0 {
		return true
	}

	return totalObservedRSS < threshold
}
