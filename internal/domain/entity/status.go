package entity

import "time"

// RefreshState is the coordinator's state machine position.
// Failed is transient: it is logged and the coordinator returns to Idle.
type RefreshState string

const (
	StateIdle       RefreshState = "idle"
	StateRefreshing RefreshState = "refreshing"
	StateFailed     RefreshState = "failed"
)

// RefreshResult answers a manual refresh request.
type RefreshResult struct {
	Started bool `json:"started"`
}

// CoordinatorStatus is the read-only view returned by GetStatus.
type CoordinatorStatus struct {
	State            RefreshState  `json:"state"`
	LastRefreshAt    *time.Time    `json:"lastRefreshAt"`
	WalletsMonitored int           `json:"walletsMonitored"`
	Chains           []string      `json:"chains"`
	LastError        string        `json:"lastError,omitempty"`
	LastDuration     time.Duration `json:"lastDurationNs"`
}
