// Package capability holds the per-subject kinematic/performance profiles used
// to bound-check control vectors. Profiles are loaded once at startup and are
// read-only afterwards; lookups need no locking.
package capability

import "math"

// JointBound is the inclusive (min, max) envelope of one joint.
type JointBound struct {
	Min float64 `mapstructure:"min" yaml:"min"`
	Max float64 `mapstructure:"max" yaml:"max"`
}

// Profile is the physical/performance envelope of one robot model.
type Profile struct {
	// DOF is the native degree-of-freedom count. Control-vector elements
	// beyond DOF must be negligibly close to zero.
	DOF    int          `mapstructure:"dof" yaml:"dof"`
	Joints []JointBound `mapstructure:"joints" yaml:"joints"`
	// Nominal latency percentiles in milliseconds, for dashboards and the
	// high-action-magnitude heuristic baseline.
	P50LatencyMs float64 `mapstructure:"p50_latency_ms" yaml:"p50_latency_ms"`
	P95LatencyMs float64 `mapstructure:"p95_latency_ms" yaml:"p95_latency_ms"`
}

// MaxActionNorm returns the largest L2 norm a control vector can have while
// every joint stays inside its bound. Used as the envelope baseline for the
// high-action-magnitude warning.
func (p Profile) MaxActionNorm() float64 {
	var sum float64
	for _, j := range p.Joints {
		m := math.Max(math.Abs(j.Min), math.Abs(j.Max))
		sum += m * m
	}
	return math.Sqrt(sum)
}
