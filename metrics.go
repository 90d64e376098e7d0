package opqueue

import "time"

// Metrics accumulates queue counters. The counters are monotonic for the
// life of a snapshot lineage; LastProcessed and LastError track only the
// most recent occurrence. Metrics are part of the persisted queue snapshot.
type Metrics struct {
	TotalQueued    int       `json:"totalQueued"`
	TotalProcessed int       `json:"totalProcessed"`
	TotalFailed    int       `json:"totalFailed"`
	LastProcessed  time.Time `json:"lastProcessed,omitzero"`
	LastError      string    `json:"lastError,omitempty"`
}
