// Package svc wires the long-lived services together and hands them to
// handlers as one context value.
package svc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blockboard/blockboard/internal/auth"
	"github.com/blockboard/blockboard/internal/autosave"
	"github.com/blockboard/blockboard/internal/bridge"
	"github.com/blockboard/blockboard/internal/clock"
	"github.com/blockboard/blockboard/internal/config"
	"github.com/blockboard/blockboard/internal/db"
	"github.com/blockboard/blockboard/internal/lock"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/preset"
)

type ServiceContext struct {
	Config  config.Config
	Version string

	DB         *db.Store
	Auth       *auth.Service
	Hub        *bridge.Hub
	Bridge     *bridge.Transport
	Presence   bridge.PresenceProbe
	StrictMode *lock.StrictMode
	Saver      *autosave.Coordinator
	Presets    *preset.Manager
	Clock      clock.Clock

	// UserID is the single dashboard owner, resolved at startup.
	UserID string
}

// NewServiceContext opens the store, restores persisted state, and
// wires the coordinator, preset manager, lock, and bridge together.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	clk := clock.Real()

	store, err := db.NewSQLite(c.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	hub := bridge.NewHub()
	transport := bridge.NewTransport(hub, clk)
	probe := bridge.NewHubProbe(hub, clk)

	svcCtx := &ServiceContext{
		Config:   c,
		DB:       store,
		Hub:      hub,
		Bridge:   transport,
		Presence: probe,
		Clock:    clk,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	password := os.Getenv("BLOCKBOARD_PASSWORD")
	if password == "" {
		password = "blockboard"
	}
	svcCtx.Auth = auth.NewService(store, transport, c.Auth.AccessSecret,
		time.Duration(c.Auth.AccessExpire)*time.Second,
		time.Duration(c.Auth.RefreshTokenExpire)*time.Second)
	user, err := svcCtx.Auth.EnsureUser(ctx, c.Auth.DefaultUserEmail, password)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure default user: %w", err)
	}
	svcCtx.UserID = user.ID

	svcCtx.StrictMode = lock.New(store, clk, user.ID)
	if err := svcCtx.StrictMode.Resume(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("resume strict mode: %w", err)
	}

	settings, err := store.GetSettings(ctx, user.ID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}
	svcCtx.Saver = autosave.New(store, transport, svcCtx.StrictMode, clk, user.ID, settings.Configuration)

	svcCtx.Presets = preset.NewManager(store, svcCtx.Saver, transport, svcCtx.StrictMode, user.ID)
	if err := svcCtx.Presets.Resume(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("resume presets: %w", err)
	}

	logging.Infof("[svc] Ready for %s (%d preset slots)", user.Email, preset.MaxPresets)
	return svcCtx, nil
}

// ApplyConfig pushes the hot-reloadable settings to the agent.
func (s *ServiceContext) ApplyConfig(c config.Config) {
	s.Config.Appearance = c.Appearance
	s.Config.ActivityLog = c.ActivityLog
	s.Bridge.SyncTheme(c.Appearance.Theme)
	s.Bridge.SyncActivityLogSettings(map[string]bool{
		"enabled": c.IsActivityLogEnabled(),
	})
}

// Close releases held resources.
func (s *ServiceContext) Close() {
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			logging.Warnf("[svc] Closing store: %v", err)
		}
	}
}
