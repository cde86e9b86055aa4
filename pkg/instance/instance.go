// Package instance defines the compute instance snapshot model for ferry.
package instance

import "time"

// LifecycleState is the phase of a compute instance.
// Provider-specific names and codes are translated once at the provider boundary.
type LifecycleState int

const (
	Unknown LifecycleState = iota
	Pending
	Running
	ShuttingDown
	Terminated
	Stopping
	Stopped
)

var stateNames = map[LifecycleState]string{
	Unknown:      "unknown",
	Pending:      "pending",
	Running:      "running",
	ShuttingDown: "shutting-down",
	Terminated:   "terminated",
	Stopping:     "stopping",
	Stopped:      "stopped",
}

// String returns the provider-neutral state name (e.g., "running").
func (s LifecycleState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return stateNames[Unknown]
}

// ParseState maps a state name back to its LifecycleState.
// Unrecognized names map to Unknown.
func ParseState(name string) LifecycleState {
	for state, n := range stateNames {
		if n == name {
			return state
		}
	}
	return Unknown
}

// Instance is a read-only snapshot of one compute instance.
// Owned by the provider - never cached across runs.
type Instance struct {
	ID         string            `json:"id"`          // Unique identifier (e.g., "i-abc123")
	State      LifecycleState    `json:"state"`       // Current lifecycle state
	Tags       map[string]string `json:"tags"`        // Key/value tags
	Type       string            `json:"type"`        // Instance type (e.g., "t3.micro")
	Zone       string            `json:"zone"`        // Availability zone
	LaunchTime time.Time         `json:"launch_time"` // When the instance was last launched
}

// Tag returns the value for key and whether the tag is present.
func (i Instance) Tag(key string) (string, bool) {
	if i.Tags == nil {
		return "", false
	}
	v, ok := i.Tags[key]
	return v, ok
}

// Terminated reports whether the instance is gone for good.
func (i Instance) Terminated() bool {
	return i.State == Terminated
}

// Running reports whether the instance is up.
func (i Instance) Running() bool {
	return i.State == Running
}

// IDs returns the IDs of the given instances, in order.
func IDs(instances []Instance) []string {
	ids := make([]string, 0, len(instances))
	for _, i := range instances {
		ids = append(ids, i.ID)
	}
	return ids
}
