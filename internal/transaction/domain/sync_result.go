package domain

// SyncResult summarizes one sync run for one user. Ephemeral: returned to the
// caller and logged, never persisted.
type SyncResult struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Added     int      `json:"added"`
	Skipped   int      `json:"skipped"`
	Error     string   `json:"error,omitempty"`
	Details   []string `json:"details,omitempty"`
}
