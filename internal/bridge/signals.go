package bridge

import "errors"

// Signals emitted to the agent.
const (
	SignalRulesInvalidate         = "rules-invalidate"
	SignalPauseStateSet           = "pause-state-set"
	SignalAuthSync                = "auth-sync"
	SignalThemeSync               = "theme-sync"
	SignalActivityLogSettingsSync = "activity-log-settings-sync"
	SignalBlockLogRequest         = "block-log-request"
	SignalBlockLogClear           = "block-log-clear"
	SignalBlockLogDeleteEntry     = "block-log-delete-entry"
	SignalPauseStateRequest       = "pause-state-request"
	SignalStorageUsageRequest     = "storage-usage-request"
)

// Signals consumed from the agent.
const (
	SignalPauseStateResponse   = "pause-state-response"
	SignalBlockLogResponse     = "block-log-response"
	SignalStorageUsageResponse = "storage-usage-response"

	// Unsolicited notifications
	SignalPauseUpdated    = "pause-updated"
	SignalBlockLogUpdated = "block-log-updated"
	SignalAuthStatus      = "auth-status"
)

// ErrAgentUnavailable means no agent connection could accept the frame.
// Request callers never see it: the transport falls back to broadcast
// and ultimately to the documented default value.
var ErrAgentUnavailable = errors.New("enforcement agent not available")

// BlockLogEntry is one blocked-navigation record kept by the agent.
type BlockLogEntry struct {
	ID        string `json:"id"`
	Domain    string `json:"domain"`
	Category  string `json:"category,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// StorageUsage is the agent's storage footprint report.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}
