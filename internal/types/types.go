// Package types holds the request/response shapes of the HTTP API.
package types

import "github.com/blockboard/blockboard/internal/rules"

// Auth

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"` // unix millis
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Configuration

type GetConfigResponse struct {
	Configuration  rules.Configuration `json:"configuration"`
	ActivePresetID string              `json:"activePresetId,omitempty"`
	Modified       bool                `json:"modified"`
	Locked         bool                `json:"locked"`
	CacheVersion   int64               `json:"cacheVersion"`
}

type UpdateConfigRequest struct {
	Configuration rules.Configuration `json:"configuration"`
}

type ConfigStatusResponse struct {
	Status         string `json:"status"` // saved, saving, error
	UnsavedChanges bool   `json:"unsavedChanges"`
}

type AddDomainRequest struct {
	Domain string `json:"domain"`
	List   string `json:"list"` // "block" or "allow"
}

type RemoveDomainRequest struct {
	Domain string `json:"domain"`
}

type SetCategoryRequest struct {
	Category string `json:"category"`
	Enabled  bool   `json:"enabled"`
}

type SetFreeTextRequest struct {
	FreeText string `json:"freeText"`
}

// Presets

type PresetInfo struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Snapshot  rules.Configuration `json:"snapshot"`
	CreatedAt int64               `json:"createdAt"` // unix millis
	Active    bool                `json:"active"`
}

type ListPresetsResponse struct {
	Presets        []PresetInfo `json:"presets"`
	ActivePresetID string       `json:"activePresetId,omitempty"`
	Modified       bool         `json:"modified"`
	PendingLoadID  string       `json:"pendingLoadId,omitempty"`
}

type CreatePresetRequest struct {
	Name      string `json:"name"`
	Overwrite bool   `json:"overwrite"`
}

type LoadPresetRequest struct {
	ID string `path:"id"`
}

type RenamePresetRequest struct {
	ID   string `path:"id"`
	Name string `json:"name"`
}

type DeletePresetRequest struct {
	ID string `path:"id"`
}

// Strict mode

type StrictModeStatusResponse struct {
	State            string `json:"state"`                      // inactive, active_timed, active_indefinite
	ActiveUntil      int64  `json:"activeUntil,omitempty"`      // unix millis
	RemainingSeconds int64  `json:"remainingSeconds,omitempty"` // floor of time left
}

type ActivateStrictModeRequest struct {
	DurationMinutes int  `json:"durationMinutes"`
	Indefinite      bool `json:"indefinite"`
}

type UnlockRequestResponse struct {
	RequestID string `json:"requestId"`
}

type ApproveUnlockRequest struct {
	RequestID string `path:"requestId"`
}

type AccountabilityContactRequest struct {
	Email string `json:"email"`
}

// Agent bridge

type AgentPresenceResponse struct {
	State string `json:"state"` // not_installed, logged_out, ready, disconnected
}

type BlockLogEntryInfo struct {
	ID        string `json:"id"`
	Domain    string `json:"domain"`
	Category  string `json:"category,omitempty"`
	BlockedAt int64  `json:"blockedAt"` // unix millis
}

type BlockLogResponse struct {
	Entries []BlockLogEntryInfo `json:"entries"`
	// Degraded is set when the agent did not answer in time and the
	// entries are the documented default (empty) rather than an error.
	Degraded bool `json:"degraded"`
}

type DeleteBlockLogEntryRequest struct {
	ID string `path:"id"`
}

type PauseStateResponse struct {
	Paused   bool `json:"paused"`
	Degraded bool `json:"degraded"`
}

type SetPauseStateRequest struct {
	Paused bool `json:"paused"`
}

type StorageUsageResponse struct {
	UsedBytes  int64 `json:"usedBytes"`
	QuotaBytes int64 `json:"quotaBytes"`
	Degraded   bool  `json:"degraded"`
}
