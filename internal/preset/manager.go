// Package preset manages named configuration snapshots: create, load,
// update, rename, delete, unload, and the divergence check between the
// live configuration and the active preset.
package preset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blockboard/blockboard/internal/autosave"
	"github.com/blockboard/blockboard/internal/db"
	"github.com/blockboard/blockboard/internal/lifecycle"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/rules"
)

// MaxPresets caps saved presets per user.
const MaxPresets = 10

var (
	// ErrConfirmRequired halts a load while unsaved edits exist. The
	// load waits in the single pending slot until confirmed.
	ErrConfirmRequired = errors.New("unsaved changes present; confirm the load to continue")
	ErrNoPendingLoad   = errors.New("no load awaiting confirmation")
	ErrNoActivePreset  = errors.New("no active preset")
)

// Store is the database surface the manager uses.
type Store interface {
	ListPresets(ctx context.Context, userID string) ([]*db.Preset, error)
	GetPreset(ctx context.Context, userID, id string) (*db.Preset, error)
	CreatePreset(ctx context.Context, userID, name string, snapshot rules.Configuration) (*db.Preset, error)
	UpdatePresetSnapshot(ctx context.Context, userID, id string, snapshot rules.Configuration) error
	RenamePreset(ctx context.Context, userID, id, name string) error
	DeletePreset(ctx context.Context, userID, id string) error
	DeletePresetAndReset(ctx context.Context, userID, id string, cfg rules.Configuration) error
	SaveConfigurationAndLink(ctx context.Context, userID string, cfg rules.Configuration, activePresetID *string) error
	GetSettings(ctx context.Context, userID string) (db.Settings, error)
	BumpCacheVersion(ctx context.Context, userID string) error
}

// Notifier carries rule invalidation to the agent after a persist.
type Notifier interface {
	InvalidateRules()
}

// Guard rejects mutations while strict mode is active.
type Guard interface {
	Locked() bool
}

// Manager tracks the active preset link, the cached original snapshot
// used for divergence checks, and the single pending-load slot.
type Manager struct {
	store    Store
	saver    *autosave.Coordinator
	notifier Notifier
	guard    Guard
	userID   string

	mu          sync.Mutex
	activeID    string // "" when no preset is linked
	original    rules.Configuration
	hasOriginal bool
	pendingLoad string // preset id awaiting confirmation, "" when none
}

// NewManager creates a preset manager bound to the user's coordinator.
func NewManager(store Store, saver *autosave.Coordinator, notifier Notifier, guard Guard, userID string) *Manager {
	return &Manager{
		store:    store,
		saver:    saver,
		notifier: notifier,
		guard:    guard,
		userID:   userID,
	}
}

// Resume restores the active preset link from the settings row. A link
// to a preset that no longer exists is dropped.
func (m *Manager) Resume(ctx context.Context) error {
	settings, err := m.store.GetSettings(ctx, m.userID)
	if err != nil {
		return err
	}
	if settings.ActivePresetID == nil {
		return nil
	}
	p, err := m.store.GetPreset(ctx, m.userID, *settings.ActivePresetID)
	if errors.Is(err, db.ErrNotFound) {
		logging.Warnf("[preset] Dropping dangling active preset link %s", *settings.ActivePresetID)
		return m.store.SaveConfigurationAndLink(ctx, m.userID, settings.Configuration, nil)
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.activeID = p.ID
	m.original = p.Snapshot.Clone()
	m.hasOriginal = true
	m.mu.Unlock()
	return nil
}

// List returns the user's presets, newest first.
func (m *Manager) List(ctx context.Context) ([]*db.Preset, error) {
	return m.store.ListPresets(ctx, m.userID)
}

// ActivePresetID returns the linked preset id, if any.
func (m *Manager) ActivePresetID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, m.activeID != ""
}

// PendingLoad returns the preset id awaiting load confirmation, if any.
func (m *Manager) PendingLoad() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingLoad, m.pendingLoad != ""
}

// IsModified reports whether the live configuration diverges from the
// active preset's original snapshot. Gates Update.
func (m *Manager) IsModified() bool {
	m.mu.Lock()
	hasOriginal := m.hasOriginal
	original := m.original
	m.mu.Unlock()

	if !hasOriginal {
		return false
	}
	return !rules.ContentEqual(m.saver.Live(), original)
}

// Create saves the snapshot as a new named preset and makes it active.
// A case-insensitive name conflict requires overwrite=true, which
// deletes the existing preset before inserting (no merge). A snapshot
// content-equal to another preset is rejected outright.
func (m *Manager) Create(ctx context.Context, name string, snapshot rules.Configuration, overwrite bool) (*db.Preset, error) {
	if m.guard != nil && m.guard.Locked() {
		return nil, rules.ErrLocked
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &rules.ValidationError{Kind: rules.KindNameConflict, Message: "preset name must not be empty"}
	}

	existing, err := m.store.ListPresets(ctx, m.userID)
	if err != nil {
		return nil, err
	}

	var conflict *db.Preset
	for _, p := range existing {
		if strings.EqualFold(p.Name, name) {
			conflict = p
			break
		}
	}
	if conflict != nil && !overwrite {
		return nil, &rules.ValidationError{
			Kind:    rules.KindNameConflict,
			Message: fmt.Sprintf("a preset named %q already exists", conflict.Name),
		}
	}

	for _, p := range existing {
		if conflict != nil && p.ID == conflict.ID {
			continue
		}
		if rules.ContentEqual(p.Snapshot, snapshot) {
			return nil, &rules.ValidationError{
				Kind:    rules.KindContentDuplicate,
				Message: fmt.Sprintf("preset %q already has this exact content", p.Name),
			}
		}
	}

	remaining := len(existing)
	if conflict != nil {
		remaining--
	}
	if remaining >= MaxPresets {
		return nil, &rules.ValidationError{
			Kind:    rules.KindQuotaExceeded,
			Message: fmt.Sprintf("preset limit of %d reached", MaxPresets),
		}
	}

	if conflict != nil {
		if err := m.store.DeletePreset(ctx, m.userID, conflict.ID); err != nil {
			return nil, err
		}
	}

	p, err := m.store.CreatePreset(ctx, m.userID, name, snapshot)
	if err != nil {
		return nil, err
	}
	if err := m.persistActive(ctx, snapshot, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// Load replaces the live configuration with the preset's snapshot,
// bypassing the debounce path. If unsaved edits exist the load halts
// with ErrConfirmRequired and waits in the pending slot; a second load
// before confirmation replaces the pending one.
func (m *Manager) Load(ctx context.Context, id string) error {
	if m.guard != nil && m.guard.Locked() {
		return rules.ErrLocked
	}

	p, err := m.store.GetPreset(ctx, m.userID, id)
	if err != nil {
		return err
	}

	if !rules.ContentEqual(m.saver.Live(), m.saver.Checkpoint()) {
		m.mu.Lock()
		m.pendingLoad = p.ID
		m.mu.Unlock()
		return ErrConfirmRequired
	}

	return m.applyLoad(ctx, p)
}

// ConfirmLoad executes the load waiting in the pending slot,
// discarding unsaved edits.
func (m *Manager) ConfirmLoad(ctx context.Context) error {
	if m.guard != nil && m.guard.Locked() {
		return rules.ErrLocked
	}

	m.mu.Lock()
	id := m.pendingLoad
	m.pendingLoad = ""
	m.mu.Unlock()

	if id == "" {
		return ErrNoPendingLoad
	}
	p, err := m.store.GetPreset(ctx, m.userID, id)
	if err != nil {
		return err
	}
	return m.applyLoad(ctx, p)
}

// CancelPendingLoad clears the pending slot without loading.
func (m *Manager) CancelPendingLoad() {
	m.mu.Lock()
	m.pendingLoad = ""
	m.mu.Unlock()
}

func (m *Manager) applyLoad(ctx context.Context, p *db.Preset) error {
	if err := m.persistActive(ctx, p.Snapshot, p.ID); err != nil {
		return err
	}
	lifecycle.Emit(lifecycle.EventPresetLoaded, p.ID)
	return nil
}

// Update overwrites the active preset's snapshot with the live
// configuration. Permitted only while IsModified; rejected when the
// result would duplicate a different preset's content.
func (m *Manager) Update(ctx context.Context) error {
	if m.guard != nil && m.guard.Locked() {
		return rules.ErrLocked
	}

	m.mu.Lock()
	activeID := m.activeID
	m.mu.Unlock()
	if activeID == "" {
		return ErrNoActivePreset
	}
	if !m.IsModified() {
		return nil
	}

	live := m.saver.Live()

	existing, err := m.store.ListPresets(ctx, m.userID)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p.ID == activeID {
			continue
		}
		if rules.ContentEqual(p.Snapshot, live) {
			return &rules.ValidationError{
				Kind:    rules.KindContentDuplicate,
				Message: fmt.Sprintf("preset %q already has this exact content", p.Name),
			}
		}
	}

	if err := m.store.UpdatePresetSnapshot(ctx, m.userID, activeID, live); err != nil {
		return err
	}
	return m.persistActive(ctx, live, activeID)
}

// Rename changes a preset's name, rejecting a case-insensitive
// duplicate excluding the preset itself.
func (m *Manager) Rename(ctx context.Context, id, newName string) error {
	if m.guard != nil && m.guard.Locked() {
		return rules.ErrLocked
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return &rules.ValidationError{Kind: rules.KindNameConflict, Message: "preset name must not be empty"}
	}

	existing, err := m.store.ListPresets(ctx, m.userID)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p.ID != id && strings.EqualFold(p.Name, newName) {
			return &rules.ValidationError{
				Kind:    rules.KindNameConflict,
				Message: fmt.Sprintf("a preset named %q already exists", p.Name),
			}
		}
	}
	return m.store.RenamePreset(ctx, m.userID, id, newName)
}

// Delete removes a preset. Deleting the active preset resets the
// configuration to the canonical empty value and clears the link in
// the same persisted write, so the link never dangles.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if m.guard != nil && m.guard.Locked() {
		return rules.ErrLocked
	}

	m.mu.Lock()
	isActive := m.activeID == id
	m.mu.Unlock()

	if !isActive {
		if err := m.store.DeletePreset(ctx, m.userID, id); err != nil {
			return err
		}
		lifecycle.Emit(lifecycle.EventPresetDeleted, id)
		return nil
	}

	empty := rules.Empty()
	if err := m.store.DeletePresetAndReset(ctx, m.userID, id, empty); err != nil {
		return err
	}
	m.afterPersist(empty, "")
	lifecycle.Emit(lifecycle.EventPresetDeleted, id)
	return nil
}

// Unload clears the active preset link and resets the configuration to
// empty without deleting any preset.
func (m *Manager) Unload(ctx context.Context) error {
	if m.guard != nil && m.guard.Locked() {
		return rules.ErrLocked
	}
	return m.persistActive(ctx, rules.Empty(), "")
}

// persistActive writes cfg and the active link immediately (bypassing
// the debounce path) and resets the checkpoint so a stale debounce
// timer becomes a no-op.
func (m *Manager) persistActive(ctx context.Context, cfg rules.Configuration, activeID string) error {
	var link *string
	if activeID != "" {
		link = &activeID
	}
	if err := m.store.SaveConfigurationAndLink(ctx, m.userID, cfg, link); err != nil {
		return err
	}
	m.afterPersist(cfg, activeID)
	return nil
}

// afterPersist updates in-memory state and fires the post-persist side
// effects shared by every immediate-persist path.
func (m *Manager) afterPersist(cfg rules.Configuration, activeID string) {
	m.saver.ResetCheckpoint(cfg)

	m.mu.Lock()
	m.activeID = activeID
	if activeID != "" {
		m.original = cfg.Clone()
		m.hasOriginal = true
	} else {
		m.original = rules.Configuration{}
		m.hasOriginal = false
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.BumpCacheVersion(ctx, m.userID); err != nil {
		logging.Warnf("[preset] Cache version bump failed: %v", err)
	}
	if m.notifier != nil {
		m.notifier.InvalidateRules()
	}
}
