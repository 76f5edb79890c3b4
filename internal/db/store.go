package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockboard/blockboard/internal/rules"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides all database access. One upserted settings row per
// user plus a presets collection. There is no version token on the
// settings row: concurrent sessions are last-write-wins.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetDB exposes the underlying handle (migrations, tests).
func (s *Store) GetDB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Settings is the per-user upserted row.
type Settings struct {
	UserID          string
	Configuration   rules.Configuration
	ActivePresetID  *string
	LockActiveUntil *time.Time
	LockIndefinite  bool
	LastBypassAt    *time.Time
	UpdatedAt       time.Time
}

// GetSettings returns the user's settings row, or a default row with
// the canonical empty configuration if none exists yet.
func (s *Store) GetSettings(ctx context.Context, userID string) (Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT configuration, active_preset_id, lock_active_until, lock_indefinite, last_bypass_at, updated_at
		FROM user_settings WHERE user_id = ?`, userID)

	var (
		cfgJSON    string
		activeID   sql.NullString
		lockUntil  sql.NullInt64
		indefinite int64
		bypassAt   sql.NullInt64
		updatedAt  int64
	)
	err := row.Scan(&cfgJSON, &activeID, &lockUntil, &indefinite, &bypassAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{UserID: userID, Configuration: rules.Empty()}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}

	var cfg rules.Configuration
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return Settings{}, fmt.Errorf("decode configuration: %w", err)
	}

	out := Settings{
		UserID:         userID,
		Configuration:  cfg,
		LockIndefinite: indefinite != 0,
		UpdatedAt:      time.Unix(updatedAt, 0),
	}
	if activeID.Valid {
		out.ActivePresetID = &activeID.String
	}
	if lockUntil.Valid {
		t := time.Unix(lockUntil.Int64, 0)
		out.LockActiveUntil = &t
	}
	if bypassAt.Valid {
		t := time.Unix(bypassAt.Int64, 0)
		out.LastBypassAt = &t
	}
	return out, nil
}

// SaveConfiguration upserts the configuration, preserving the active
// preset link and lock fields on an existing row. This is the autosave
// write path.
func (s *Store) SaveConfiguration(ctx context.Context, userID string, cfg rules.Configuration) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, configuration, updated_at)
		VALUES (?, ?, unixepoch())
		ON CONFLICT(user_id) DO UPDATE SET
			configuration = excluded.configuration,
			updated_at = unixepoch()`,
		userID, string(cfgJSON))
	if err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	return nil
}

// SaveConfigurationAndLink upserts the configuration and active preset
// link in one write. Lock fields on an existing row are preserved.
func (s *Store) SaveConfigurationAndLink(ctx context.Context, userID string, cfg rules.Configuration, activePresetID *string) error {
	return s.saveConfigurationTx(ctx, s.db, userID, cfg, activePresetID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) saveConfigurationTx(ctx context.Context, tx execer, userID string, cfg rules.Configuration, activePresetID *string) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	var active sql.NullString
	if activePresetID != nil {
		active = sql.NullString{String: *activePresetID, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, configuration, active_preset_id, updated_at)
		VALUES (?, ?, ?, unixepoch())
		ON CONFLICT(user_id) DO UPDATE SET
			configuration = excluded.configuration,
			active_preset_id = excluded.active_preset_id,
			updated_at = unixepoch()`,
		userID, string(cfgJSON), active)
	if err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	return nil
}

// SaveLock atomically writes the strict mode lock field group.
func (s *Store) SaveLock(ctx context.Context, userID string, activeUntil *time.Time, indefinite bool) error {
	var until sql.NullInt64
	if activeUntil != nil {
		until = sql.NullInt64{Int64: activeUntil.Unix(), Valid: true}
	}
	ind := int64(0)
	if indefinite {
		ind = 1
	}
	cfgJSON, _ := json.Marshal(rules.Empty())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, configuration, lock_active_until, lock_indefinite, updated_at)
		VALUES (?, ?, ?, ?, unixepoch())
		ON CONFLICT(user_id) DO UPDATE SET
			lock_active_until = excluded.lock_active_until,
			lock_indefinite = excluded.lock_indefinite,
			updated_at = unixepoch()`,
		userID, string(cfgJSON), until, ind)
	if err != nil {
		return fmt.Errorf("save lock: %w", err)
	}
	return nil
}

// RecordBypass stamps the emergency bypass time on the settings row.
func (s *Store) RecordBypass(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_settings SET last_bypass_at = ?, updated_at = unixepoch()
		WHERE user_id = ?`, at.Unix(), userID)
	if err != nil {
		return fmt.Errorf("record bypass: %w", err)
	}
	return nil
}

// BumpCacheVersion increments the agent decision-cache version counter.
func (s *Store) BumpCacheVersion(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_versions (user_id, version) VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET version = version + 1`, userID)
	if err != nil {
		return fmt.Errorf("bump cache version: %w", err)
	}
	return nil
}

// CacheVersion returns the current cache version counter (0 if unset).
func (s *Store) CacheVersion(ctx context.Context, userID string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM cache_versions WHERE user_id = ?`, userID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

// Preset is a named, saved configuration snapshot.
type Preset struct {
	ID        string              `json:"id"`
	UserID    string              `json:"-"`
	Name      string              `json:"name"`
	Snapshot  rules.Configuration `json:"snapshot"`
	CreatedAt time.Time           `json:"created_at"`
}

// CreatePreset inserts a preset and returns it with a generated id.
func (s *Store) CreatePreset(ctx context.Context, userID, name string, snapshot rules.Configuration) (*Preset, error) {
	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	p := &Preset{
		ID:       uuid.New().String(),
		UserID:   userID,
		Name:     name,
		Snapshot: snapshot,
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO presets (id, user_id, name, snapshot) VALUES (?, ?, ?, ?)
		RETURNING created_at`,
		p.ID, userID, name, string(snapJSON))
	var createdAt int64
	if err := row.Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("create preset: %w", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	return p, nil
}

// ListPresets returns the user's presets, newest first.
func (s *Store) ListPresets(ctx context.Context, userID string) ([]*Preset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, snapshot, created_at FROM presets
		WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var out []*Preset
	for rows.Next() {
		p := &Preset{UserID: userID}
		var snapJSON string
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Name, &snapJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(snapJSON), &p.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot for %s: %w", p.ID, err)
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPreset returns a single preset by id.
func (s *Store) GetPreset(ctx context.Context, userID, id string) (*Preset, error) {
	p := &Preset{ID: id, UserID: userID}
	var snapJSON string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT name, snapshot, created_at FROM presets
		WHERE user_id = ? AND id = ?`, userID, id).Scan(&p.Name, &snapJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preset: %w", err)
	}
	if err := json.Unmarshal([]byte(snapJSON), &p.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	return p, nil
}

// UpdatePresetSnapshot overwrites a preset's snapshot.
func (s *Store) UpdatePresetSnapshot(ctx context.Context, userID, id string, snapshot rules.Configuration) error {
	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE presets SET snapshot = ? WHERE user_id = ? AND id = ?`,
		string(snapJSON), userID, id)
	if err != nil {
		return fmt.Errorf("update preset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RenamePreset changes a preset's name.
func (s *Store) RenamePreset(ctx context.Context, userID, id, name string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE presets SET name = ? WHERE user_id = ? AND id = ?`, name, userID, id)
	if err != nil {
		return fmt.Errorf("rename preset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePreset removes a preset without touching the settings row.
func (s *Store) DeletePreset(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM presets WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePresetAndReset deletes the active preset and resets the live
// configuration to cfg with a cleared link, in one transaction. There
// is never a persisted state where the link points at a missing preset.
func (s *Store) DeletePresetAndReset(ctx context.Context, userID, id string, cfg rules.Configuration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM presets WHERE user_id = ? AND id = ?`, userID, id); err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	if err := s.saveConfigurationTx(ctx, tx, userID, cfg, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// SetAccountabilityContact records (or replaces) the user's contact.
// Replacing the contact resets verification.
func (s *Store) SetAccountabilityContact(ctx context.Context, userID, email string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accountability_contacts (user_id, email, verified) VALUES (?, ?, 0)
		ON CONFLICT(user_id) DO UPDATE SET email = excluded.email, verified = 0`,
		userID, email)
	return err
}

// VerifyAccountabilityContact marks the contact as verified.
func (s *Store) VerifyAccountabilityContact(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accountability_contacts SET verified = 1 WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// VerifiedContact returns the verified contact email, or "" if the user
// has no verified accountability contact.
func (s *Store) VerifiedContact(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, `
		SELECT email FROM accountability_contacts WHERE user_id = ? AND verified = 1`, userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return email, err
}

// CreateUnlockRequest records a pending unlock request for external approval.
func (s *Store) CreateUnlockRequest(ctx context.Context, userID string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unlock_requests (id, user_id, status) VALUES (?, ?, 'pending')`, id, userID)
	if err != nil {
		return "", fmt.Errorf("create unlock request: %w", err)
	}
	return id, nil
}

// ApproveUnlockRequest marks a pending request approved.
func (s *Store) ApproveUnlockRequest(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE unlock_requests SET status = 'approved', decided_at = unixepoch()
		WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeApprovedUnlock reports whether an approved unlock request
// exists for the user, consuming it so it unlocks only once.
func (s *Store) ConsumeApprovedUnlock(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM unlock_requests
		WHERE user_id = ? AND status = 'approved'`, userID)
	if err != nil {
		return false, fmt.Errorf("consume unlock: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SweepUnlockRequests drops pending requests older than cutoff.
// Called by the maintenance job.
func (s *Store) SweepUnlockRequests(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM unlock_requests WHERE status = 'pending' AND requested_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// User is a dashboard account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	u := &User{ID: uuid.New().String(), Email: email, PasswordHash: passwordHash}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)
		RETURNING created_at`, u.ID, email, passwordHash)
	var createdAt int64
	if err := row.Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0)
	return u, nil
}

// GetUserByEmail looks up an account by email (case-insensitive).
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0)
	return u, nil
}
