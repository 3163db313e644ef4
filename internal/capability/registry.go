package capability

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Registry maps subject type to Profile. Populated once by Load or
// NewRegistry; immutable afterwards and safe for concurrent lookups.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry builds a registry from the given profiles after validating them.
// Subject types are matched case-insensitively.
func NewRegistry(profiles map[string]Profile) (*Registry, error) {
	m := make(map[string]Profile, len(profiles))
	for subject, p := range profiles {
		key := strings.ToLower(strings.TrimSpace(subject))
		if key == "" {
			return nil, fmt.Errorf("capability: empty subject type")
		}
		if p.DOF <= 0 {
			return nil, fmt.Errorf("capability: subject %q: dof must be positive, got %d", subject, p.DOF)
		}
		if len(p.Joints) != p.DOF {
			return nil, fmt.Errorf("capability: subject %q: %d joint bounds for dof %d", subject, len(p.Joints), p.DOF)
		}
		for i, j := range p.Joints {
			if j.Min > j.Max {
				return nil, fmt.Errorf("capability: subject %q joint %d: min %v > max %v", subject, i, j.Min, j.Max)
			}
		}
		m[key] = p
	}
	return &Registry{profiles: m}, nil
}

// Load reads profiles from a YAML file of the form:
//
//	subjects:
//	  arm_a:
//	    dof: 7
//	    joints:
//	      - {min: -1.0, max: 1.0}
//	      ...
//	    p50_latency_ms: 120
//	    p95_latency_ms: 350
//
// A load failure is a startup error; callers should treat it as fatal, not as
// a per-record condition.
func Load(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("capability: read %s: %w", path, err)
	}
	var profiles map[string]Profile
	if err := v.UnmarshalKey("subjects", &profiles); err != nil {
		return nil, fmt.Errorf("capability: parse %s: %w", path, err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("capability: %s defines no subjects", path)
	}
	return NewRegistry(profiles)
}

// Lookup returns the profile for subjectType. ok is false when the subject is
// recognized syntax but has no profile; that is a configuration gap, not a
// data error.
func (r *Registry) Lookup(subjectType string) (Profile, bool) {
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(subjectType))]
	return p, ok
}

// Subjects returns the known subject types, for logging at startup.
func (r *Registry) Subjects() []string {
	out := make([]string, 0, len(r.profiles))
	for s := range r.profiles {
		out = append(out, s)
	}
	return out
}
