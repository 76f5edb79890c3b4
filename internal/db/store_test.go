package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockboard/blockboard/internal/rules"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetSettingsDefaultsToEmptyConfiguration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", settings.UserID)
	assert.True(t, rules.ContentEqual(rules.Empty(), settings.Configuration))
	assert.Nil(t, settings.ActivePresetID)
	assert.Nil(t, settings.LockActiveUntil)
	assert.False(t, settings.LockIndefinite)
	assert.Nil(t, settings.LastBypassAt)
}

func TestSaveConfigurationPreservesLinkAndLock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.CreatePreset(ctx, "user-1", "Work", rules.Empty())
	require.NoError(t, err)
	require.NoError(t, store.SaveConfigurationAndLink(ctx, "user-1", p.Snapshot, &p.ID))

	until := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.SaveLock(ctx, "user-1", &until, false))

	// The autosave write path touches only the configuration column.
	edited := rules.Empty().WithFreeText("no social media after 9pm")
	require.NoError(t, store.SaveConfiguration(ctx, "user-1", edited))

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "no social media after 9pm", settings.Configuration.FreeText)
	require.NotNil(t, settings.ActivePresetID)
	assert.Equal(t, p.ID, *settings.ActivePresetID)
	require.NotNil(t, settings.LockActiveUntil)
	assert.Equal(t, until.Unix(), settings.LockActiveUntil.Unix())
}

func TestSaveConfigurationAndLinkClearsLink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.CreatePreset(ctx, "user-1", "Work", rules.Empty())
	require.NoError(t, err)
	require.NoError(t, store.SaveConfigurationAndLink(ctx, "user-1", rules.Empty(), &p.ID))
	require.NoError(t, store.SaveConfigurationAndLink(ctx, "user-1", rules.Empty(), nil))

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, settings.ActivePresetID)
}

func TestSaveLockRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Indefinite lock on a fresh row.
	require.NoError(t, store.SaveLock(ctx, "user-1", nil, true))
	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, settings.LockActiveUntil)
	assert.True(t, settings.LockIndefinite)

	// Clearing writes both fields together.
	require.NoError(t, store.SaveLock(ctx, "user-1", nil, false))
	settings, err = store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, settings.LockActiveUntil)
	assert.False(t, settings.LockIndefinite)
}

func TestRecordBypass(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveConfiguration(ctx, "user-1", rules.Empty()))
	at := time.Now().Truncate(time.Second)
	require.NoError(t, store.RecordBypass(ctx, "user-1", at))

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, settings.LastBypassAt)
	assert.Equal(t, at.Unix(), settings.LastBypassAt.Unix())
}

func TestCacheVersionBump(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v, err := store.CacheVersion(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, store.BumpCacheVersion(ctx, "user-1"))
	require.NoError(t, store.BumpCacheVersion(ctx, "user-1"))

	v, err = store.CacheVersion(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestPresetCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap, err := rules.Empty().WithBlockDomain("reddit.com")
	require.NoError(t, err)

	p, err := store.CreatePreset(ctx, "user-1", "Deep Work", snap)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := store.GetPreset(ctx, "user-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deep Work", got.Name)
	assert.True(t, rules.ContentEqual(snap, got.Snapshot))

	// Presets are scoped per user.
	_, err = store.GetPreset(ctx, "user-2", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	updated := rules.Empty().WithFreeText("weekend rules")
	require.NoError(t, store.UpdatePresetSnapshot(ctx, "user-1", p.ID, updated))
	got, err = store.GetPreset(ctx, "user-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "weekend rules", got.Snapshot.FreeText)

	require.NoError(t, store.RenamePreset(ctx, "user-1", p.ID, "Weekend"))
	got, err = store.GetPreset(ctx, "user-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weekend", got.Name)

	require.NoError(t, store.DeletePreset(ctx, "user-1", p.ID))
	_, err = store.GetPreset(ctx, "user-1", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.UpdatePresetSnapshot(ctx, "user-1", p.ID, updated), ErrNotFound)
	assert.ErrorIs(t, store.RenamePreset(ctx, "user-1", p.ID, "Gone"), ErrNotFound)
	assert.ErrorIs(t, store.DeletePreset(ctx, "user-1", p.ID), ErrNotFound)
}

func TestListPresetsScopedToUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePreset(ctx, "user-1", "One", rules.Empty())
	require.NoError(t, err)
	_, err = store.CreatePreset(ctx, "user-1", "Two", rules.Empty())
	require.NoError(t, err)
	_, err = store.CreatePreset(ctx, "user-2", "Other", rules.Empty())
	require.NoError(t, err)

	presets, err := store.ListPresets(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, presets, 2)
	names := []string{presets[0].Name, presets[1].Name}
	assert.ElementsMatch(t, []string{"One", "Two"}, names)
}

func TestPresetNameUniqueCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePreset(ctx, "user-1", "Focus", rules.Empty())
	require.NoError(t, err)

	_, err = store.CreatePreset(ctx, "user-1", "focus", rules.Empty())
	assert.Error(t, err, "case-insensitive name collision must be rejected by the index")

	// Same name under a different user is fine.
	_, err = store.CreatePreset(ctx, "user-2", "focus", rules.Empty())
	assert.NoError(t, err)
}

func TestDeletePresetAndResetIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.CreatePreset(ctx, "user-1", "Active", rules.Empty())
	require.NoError(t, err)
	require.NoError(t, store.SaveConfigurationAndLink(ctx, "user-1", p.Snapshot, &p.ID))

	require.NoError(t, store.DeletePresetAndReset(ctx, "user-1", p.ID, rules.Empty()))

	_, err = store.GetPreset(ctx, "user-1", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, settings.ActivePresetID, "link must never point at a deleted preset")
	assert.True(t, rules.ContentEqual(rules.Empty(), settings.Configuration))
}

func TestAccountabilityContactFlow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	email, err := store.VerifiedContact(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, email)

	require.NoError(t, store.SetAccountabilityContact(ctx, "user-1", "friend@example.com"))
	email, err = store.VerifiedContact(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, email, "unverified contact must not count")

	require.NoError(t, store.VerifyAccountabilityContact(ctx, "user-1"))
	email, err = store.VerifiedContact(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "friend@example.com", email)

	// Replacing the contact resets verification.
	require.NoError(t, store.SetAccountabilityContact(ctx, "user-1", "other@example.com"))
	email, err = store.VerifiedContact(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, email)

	assert.ErrorIs(t, store.VerifyAccountabilityContact(ctx, "nobody"), ErrNotFound)
}

func TestUnlockRequestLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateUnlockRequest(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Pending requests do not unlock.
	ok, err := store.ConsumeApprovedUnlock(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ApproveUnlockRequest(ctx, id))
	// A request is only approvable once.
	assert.ErrorIs(t, store.ApproveUnlockRequest(ctx, id), ErrNotFound)

	ok, err = store.ConsumeApprovedUnlock(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Consuming deletes the request.
	ok, err = store.ConsumeApprovedUnlock(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, store.ApproveUnlockRequest(ctx, "missing"), ErrNotFound)
}

func TestSweepUnlockRequests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale, err := store.CreateUnlockRequest(ctx, "user-1")
	require.NoError(t, err)
	approved, err := store.CreateUnlockRequest(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, store.ApproveUnlockRequest(ctx, approved))

	// A cutoff in the future catches the pending request but leaves the
	// approved one for consumption.
	n, err := store.SweepUnlockRequests(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, store.ApproveUnlockRequest(ctx, stale), ErrNotFound)
	ok, err := store.ConsumeApprovedUnlock(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserCreateAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetUserByEmail(ctx, "owner@localhost")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := store.CreateUser(ctx, "owner@localhost", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := store.GetUserByEmail(ctx, "owner@localhost")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	// Email column is NOCASE.
	got, err = store.GetUserByEmail(ctx, "Owner@Localhost")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = store.CreateUser(ctx, "OWNER@LOCALHOST", "other")
	assert.Error(t, err, "duplicate email must be rejected")
}
