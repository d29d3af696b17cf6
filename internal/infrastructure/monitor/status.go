package monitor

import "time"

// ComponentStatus is the last observed state of one backing store.
type ComponentStatus struct {
	Enabled   bool   `json:"enabled"`
	Ready     bool   `json:"ready"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

type Status struct {
	Components map[string]ComponentStatus `json:"components"`
	LastCheck  time.Time                  `json:"last_check"`
}

// Healthy reports whether every enabled, initialized component answered its
// last ping. Components that were never used do not count against health.
func (s Status) Healthy() bool {
	for _, c := range s.Components {
		if c.Enabled && c.Ready && !c.Reachable {
			return false
		}
	}
	return true
}
