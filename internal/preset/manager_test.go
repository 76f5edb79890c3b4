package preset

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockboard/blockboard/internal/autosave"
	"github.com/blockboard/blockboard/internal/clock"
	"github.com/blockboard/blockboard/internal/db"
	"github.com/blockboard/blockboard/internal/rules"
)

// memStore is an in-memory stand-in for the sqlite store.
type memStore struct {
	mu       sync.Mutex
	seq      int
	presets  []*db.Preset
	settings db.Settings
	bumps    int
}

func newMemStore() *memStore {
	return &memStore{settings: db.Settings{UserID: "user-1", Configuration: rules.Empty()}}
}

func (m *memStore) ListPresets(ctx context.Context, userID string) ([]*db.Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*db.Preset, len(m.presets))
	copy(out, m.presets)
	return out, nil
}

func (m *memStore) GetPreset(ctx context.Context, userID, id string) (*db.Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.presets {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) CreatePreset(ctx context.Context, userID, name string, snapshot rules.Configuration) (*db.Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p := &db.Preset{
		ID:        fmt.Sprintf("preset-%d", m.seq),
		UserID:    userID,
		Name:      name,
		Snapshot:  snapshot.Clone(),
		CreatedAt: time.Now(),
	}
	m.presets = append(m.presets, p)
	return p, nil
}

func (m *memStore) UpdatePresetSnapshot(ctx context.Context, userID, id string, snapshot rules.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.presets {
		if p.ID == id {
			p.Snapshot = snapshot.Clone()
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *memStore) RenamePreset(ctx context.Context, userID, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.presets {
		if p.ID == id {
			p.Name = name
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *memStore) DeletePreset(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.presets {
		if p.ID == id {
			m.presets = append(m.presets[:i], m.presets[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *memStore) DeletePresetAndReset(ctx context.Context, userID, id string, cfg rules.Configuration) error {
	if err := m.DeletePreset(ctx, userID, id); err != nil {
		return err
	}
	return m.SaveConfigurationAndLink(ctx, userID, cfg, nil)
}

func (m *memStore) SaveConfigurationAndLink(ctx context.Context, userID string, cfg rules.Configuration, activePresetID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.Configuration = cfg.Clone()
	m.settings.ActivePresetID = activePresetID
	return nil
}

func (m *memStore) SaveConfiguration(ctx context.Context, userID string, cfg rules.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.Configuration = cfg.Clone()
	return nil
}

func (m *memStore) GetSettings(ctx context.Context, userID string) (db.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *memStore) BumpCacheVersion(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bumps++
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *fakeNotifier) InvalidateRules() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
}

type fakeGuard struct{ locked bool }

func (g *fakeGuard) Locked() bool { return g.locked }

func newTestManager(t *testing.T) (*Manager, *autosave.Coordinator, *memStore, *fakeGuard) {
	t.Helper()
	store := newMemStore()
	guard := &fakeGuard{}
	clk := clock.NewFake(time.Unix(1700000000, 0))
	saver := autosave.New(store, &fakeNotifier{}, guard, clk, "user-1", rules.Empty())
	mgr := NewManager(store, saver, &fakeNotifier{}, guard, "user-1")
	return mgr, saver, store, guard
}

func cfgWithText(text string) rules.Configuration {
	return rules.Empty().WithFreeText(text)
}

func TestCreatePresetSetsActive(t *testing.T) {
	mgr, saver, store, _ := newTestManager(t)
	ctx := context.Background()

	p, err := mgr.Create(ctx, "Work", cfgWithText("work rules"), false)
	require.NoError(t, err)
	require.NotNil(t, p)

	activeID, ok := mgr.ActivePresetID()
	require.True(t, ok)
	assert.Equal(t, p.ID, activeID)

	// Checkpoint and live both reflect the snapshot; nothing is left
	// dirty.
	assert.Equal(t, "work rules", saver.Live().FreeText)
	assert.False(t, saver.HasUnsavedChanges())
	assert.False(t, mgr.IsModified())

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, settings.ActivePresetID)
	assert.Equal(t, p.ID, *settings.ActivePresetID)
}

func TestCreateRejectsCaseInsensitiveNameConflict(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "Work", cfgWithText("a"), false)
	require.NoError(t, err)

	_, err = mgr.Create(ctx, "wOrK", cfgWithText("b"), false)
	ve, ok := rules.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, rules.KindNameConflict, ve.Kind)
}

func TestCreateOverwriteReplacesConflict(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	ctx := context.Background()

	old, err := mgr.Create(ctx, "Work", cfgWithText("old"), false)
	require.NoError(t, err)

	fresh, err := mgr.Create(ctx, "WORK", cfgWithText("new"), true)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)

	presets, err := mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, presets, 1)
	assert.Equal(t, "new", presets[0].Snapshot.FreeText)
}

func TestCreateRejectsContentDuplicateOrderInsensitive(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := rules.Empty().WithBlockDomain("a.com")
	require.NoError(t, err)
	first, err = first.WithBlockDomain("b.com")
	require.NoError(t, err)

	_, err = mgr.Create(ctx, "Original", first, false)
	require.NoError(t, err)

	reordered := first.Clone()
	reordered.BlockList = []string{"b.com", "a.com"}
	_, err = mgr.Create(ctx, "Copy", reordered, false)
	ve, ok := rules.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, rules.KindContentDuplicate, ve.Kind)
}

func TestCreateEnforcesQuota(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < MaxPresets; i++ {
		_, err := mgr.Create(ctx, fmt.Sprintf("p%d", i), cfgWithText(fmt.Sprintf("content %d", i)), false)
		require.NoError(t, err)
	}

	_, err := mgr.Create(ctx, "one too many", cfgWithText("overflow"), false)
	ve, ok := rules.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, rules.KindQuotaExceeded, ve.Kind)

	// Overwriting at the quota is fine: it frees the slot it fills.
	_, err = mgr.Create(ctx, "p0", cfgWithText("replacement"), true)
	require.NoError(t, err)
}

func TestLoadCleanAppliesImmediately(t *testing.T) {
	mgr, saver, _, _ := newTestManager(t)
	ctx := context.Background()

	p, err := mgr.Create(ctx, "Work", cfgWithText("work"), false)
	require.NoError(t, err)
	require.NoError(t, mgr.Unload(ctx))

	require.NoError(t, mgr.Load(ctx, p.ID))
	assert.Equal(t, "work", saver.Live().FreeText)

	activeID, ok := mgr.ActivePresetID()
	require.True(t, ok)
	assert.Equal(t, p.ID, activeID)
}

func TestLoadWithUnsavedEditsRequiresConfirmation(t *testing.T) {
	mgr, saver, _, _ := newTestManager(t)
	ctx := context.Background()

	p, err := mgr.Create(ctx, "Work", cfgWithText("work"), false)
	require.NoError(t, err)
	require.NoError(t, mgr.Unload(ctx))

	// Dirty edit parks the load.
	require.NoError(t, saver.OnEdit(cfgWithText("half-typed thought")))
	err = mgr.Load(ctx, p.ID)
	require.ErrorIs(t, err, ErrConfirmRequired)
	assert.Equal(t, "half-typed thought", saver.Live().FreeText, "live must be untouched")

	pending, ok := mgr.PendingLoad()
	require.True(t, ok)
	assert.Equal(t, p.ID, pending)

	// Confirmation discards the unsaved edit and applies the snapshot.
	require.NoError(t, mgr.ConfirmLoad(ctx))
	assert.Equal(t, "work", saver.Live().FreeText)
	assert.False(t, saver.HasUnsavedChanges())
	_, ok = mgr.PendingLoad()
	assert.False(t, ok)
}

func TestSecondLoadReplacesPendingSlot(t *testing.T) {
	mgr, saver, _, _ := newTestManager(t)
	ctx := context.Background()

	a, err := mgr.Create(ctx, "A", cfgWithText("aaa"), false)
	require.NoError(t, err)
	b, err := mgr.Create(ctx, "B", cfgWithText("bbb"), false)
	require.NoError(t, err)
	require.NoError(t, mgr.Unload(ctx))

	require.NoError(t, saver.OnEdit(cfgWithText("dirty")))
	require.ErrorIs(t, mgr.Load(ctx, a.ID), ErrConfirmRequired)
	require.ErrorIs(t, mgr.Load(ctx, b.ID), ErrConfirmRequired)

	pending, ok := mgr.PendingLoad()
	require.True(t, ok)
	assert.Equal(t, b.ID, pending, "second load replaces the pending one")

	require.NoError(t, mgr.ConfirmLoad(ctx))
	assert.Equal(t, "bbb", saver.Live().FreeText)
}

func TestConfirmWithoutPendingLoad(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	require.ErrorIs(t, mgr.ConfirmLoad(context.Background()), ErrNoPendingLoad)
}

func TestCancelPendingLoad(t *testing.T) {
	mgr, saver, _, _ := newTestManager(t)
	ctx := context.Background()

	p, err := mgr.Create(ctx, "Work", cfgWithText("work"), false)
	require.NoError(t, err)
	require.NoError(t, mgr.Unload(ctx))

	require.NoError(t, saver.OnEdit(cfgWithText("dirty")))
	require.ErrorIs(t, mgr.Load(ctx, p.ID), ErrConfirmRequired)

	mgr.CancelPendingLoad()
	require.ErrorIs(t, mgr.ConfirmLoad(ctx), ErrNoPendingLoad)
	assert.Equal(t, "dirty", saver.Live().FreeText)
}

func TestIsModifiedTracksDivergence(t *testing.T) {
	mgr, saver, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "Work", cfgWithText("work"), false)
	require.NoError(t, err)
	assert.False(t, mgr.IsModified())

	require.NoError(t, saver.OnEdit(cfgWithText("work, but different")))
	assert.True(t, mgr.IsModified())

	// Editing back to the original content clears the divergence.
	require.NoError(t, saver.OnEdit(cfgWithText("work")))
	assert.False(t, mgr.IsModified())
}

func TestUpdateOverwritesActiveSnapshot(t *testing.T) {
	mgr, saver, _, _ := newTestManager(t)
	ctx := context.Background()

	p, err := mgr.Create(ctx, "Work", cfgWithText("v1"), false)
	require.NoError(t, err)

	require.NoError(t, saver.OnEdit(cfgWithText("v2")))
	require.True(t, mgr.IsModified())

	require.NoError(t, mgr.Update(ctx))
	assert.False(t, mgr.IsModified())
	assert.False(t, saver.HasUnsavedChanges())

	stored, err := mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, p.ID, stored[0].ID)
	assert.Equal(t, "v2", stored[0].Snapshot.FreeText)
}

func TestUpdateRejectsDuplicateOfOtherPreset(t *testing.T) {
	mgr, saver, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "A", cfgWithText("aaa"), false)
	require.NoError(t, err)
	_, err = mgr.Create(ctx, "B", cfgWithText("bbb"), false)
	require.NoError(t, err)

	// B is active; editing it to A's exact content must be rejected.
	require.NoError(t, saver.OnEdit(cfgWithText("aaa")))
	err = mgr.Update(ctx)
	ve, ok := rules.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, rules.KindContentDuplicate, ve.Kind)
}

func TestUpdateWithoutActivePreset(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	require.ErrorIs(t, mgr.Update(context.Background()), ErrNoActivePreset)
}

func TestRenameRejectsDuplicateExcludingSelf(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	ctx := context.Background()

	a, err := mgr.Create(ctx, "A", cfgWithText("aaa"), false)
	require.NoError(t, err)
	_, err = mgr.Create(ctx, "B", cfgWithText("bbb"), false)
	require.NoError(t, err)

	// Renaming to its own name (case change) is allowed.
	require.NoError(t, mgr.Rename(ctx, a.ID, "a"))

	err = mgr.Rename(ctx, a.ID, "b")
	ve, ok := rules.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, rules.KindNameConflict, ve.Kind)
}

func TestDeleteActivePresetResetsToEmpty(t *testing.T) {
	mgr, saver, store, _ := newTestManager(t)
	ctx := context.Background()

	p, err := mgr.Create(ctx, "Work", cfgWithText("work"), false)
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(ctx, p.ID))

	_, ok := mgr.ActivePresetID()
	assert.False(t, ok)
	assert.True(t, rules.ContentEqual(saver.Live(), rules.Empty()))

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, settings.ActivePresetID)
	assert.True(t, rules.ContentEqual(settings.Configuration, rules.Empty()))
}

func TestDeleteInactivePresetLeavesConfigAlone(t *testing.T) {
	mgr, saver, _, _ := newTestManager(t)
	ctx := context.Background()

	a, err := mgr.Create(ctx, "A", cfgWithText("aaa"), false)
	require.NoError(t, err)
	_, err = mgr.Create(ctx, "B", cfgWithText("bbb"), false)
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(ctx, a.ID))
	assert.Equal(t, "bbb", saver.Live().FreeText)

	activeID, ok := mgr.ActivePresetID()
	require.True(t, ok)
	assert.NotEqual(t, a.ID, activeID)
}

func TestUnloadKeepsPreset(t *testing.T) {
	mgr, saver, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "Work", cfgWithText("work"), false)
	require.NoError(t, err)

	require.NoError(t, mgr.Unload(ctx))

	_, ok := mgr.ActivePresetID()
	assert.False(t, ok)
	assert.True(t, rules.ContentEqual(saver.Live(), rules.Empty()))

	presets, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, presets, 1)
}

func TestMutationsRejectedWhileLocked(t *testing.T) {
	mgr, _, _, guard := newTestManager(t)
	ctx := context.Background()

	p, err := mgr.Create(ctx, "Work", cfgWithText("work"), false)
	require.NoError(t, err)

	guard.locked = true

	_, err = mgr.Create(ctx, "Another", cfgWithText("x"), false)
	assert.ErrorIs(t, err, rules.ErrLocked)
	assert.ErrorIs(t, mgr.Load(ctx, p.ID), rules.ErrLocked)
	assert.ErrorIs(t, mgr.ConfirmLoad(ctx), rules.ErrLocked)
	assert.ErrorIs(t, mgr.Update(ctx), rules.ErrLocked)
	assert.ErrorIs(t, mgr.Rename(ctx, p.ID, "Renamed"), rules.ErrLocked)
	assert.ErrorIs(t, mgr.Delete(ctx, p.ID), rules.ErrLocked)
	assert.ErrorIs(t, mgr.Unload(ctx), rules.ErrLocked)
}

func TestResumeRestoresActiveLink(t *testing.T) {
	mgr, _, store, _ := newTestManager(t)
	ctx := context.Background()

	p, err := mgr.Create(ctx, "Work", cfgWithText("work"), false)
	require.NoError(t, err)

	// A second manager over the same store picks up the link.
	clk := clock.NewFake(time.Unix(1700000000, 0))
	saver2 := autosave.New(store, &fakeNotifier{}, &fakeGuard{}, clk, "user-1", cfgWithText("work"))
	mgr2 := NewManager(store, saver2, &fakeNotifier{}, &fakeGuard{}, "user-1")
	require.NoError(t, mgr2.Resume(ctx))

	activeID, ok := mgr2.ActivePresetID()
	require.True(t, ok)
	assert.Equal(t, p.ID, activeID)
	assert.False(t, mgr2.IsModified())
}

func TestResumeDropsDanglingLink(t *testing.T) {
	mgr, _, store, _ := newTestManager(t)
	ctx := context.Background()

	p, err := mgr.Create(ctx, "Work", cfgWithText("work"), false)
	require.NoError(t, err)

	// Simulate a preset row vanishing out from under the link.
	require.NoError(t, store.DeletePreset(ctx, "user-1", p.ID))

	clk := clock.NewFake(time.Unix(1700000000, 0))
	saver2 := autosave.New(store, &fakeNotifier{}, &fakeGuard{}, clk, "user-1", cfgWithText("work"))
	mgr2 := NewManager(store, saver2, &fakeNotifier{}, &fakeGuard{}, "user-1")
	require.NoError(t, mgr2.Resume(ctx))

	_, ok := mgr2.ActivePresetID()
	assert.False(t, ok)

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, settings.ActivePresetID)
}
