// Package server assembles the HTTP surface: the REST API, the agent
// websocket endpoint, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/blockboard/blockboard/internal/bridge"
	"github.com/blockboard/blockboard/internal/config"
	"github.com/blockboard/blockboard/internal/handler"
	agenth "github.com/blockboard/blockboard/internal/handler/agent"
	authh "github.com/blockboard/blockboard/internal/handler/auth"
	preseth "github.com/blockboard/blockboard/internal/handler/preset"
	"github.com/blockboard/blockboard/internal/handler/settings"
	"github.com/blockboard/blockboard/internal/handler/strictmode"
	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/maintenance"
	"github.com/blockboard/blockboard/internal/middleware"
	"github.com/blockboard/blockboard/internal/svc"
)

// ServerOptions holds optional dependencies for the server
type ServerOptions struct {
	SvcCtx     *svc.ServiceContext // Pre-initialized service context
	Quiet      bool                // Suppress startup messages for clean CLI output
	ConfigPath string              // Watched for hot reload when set
}

// Run starts the dashboard server with the given configuration.
// It blocks until the context is cancelled or an error occurs.
func Run(ctx context.Context, c config.Config, opts ...ServerOptions) error {
	var o ServerOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return run(ctx, c, o)
}

func run(ctx context.Context, c config.Config, opts ServerOptions) error {
	serverPort := c.Server.Port

	if err := checkPortAvailable(serverPort); err != nil {
		return fmt.Errorf("port %d is already in use - only one dashboard instance allowed per computer", serverPort)
	}

	if !opts.Quiet {
		fmt.Printf("Starting server on http://localhost:%d\n", serverPort)
	}

	svcCtx := opts.SvcCtx
	if svcCtx == nil {
		var err error
		svcCtx, err = svc.NewServiceContext(c)
		if err != nil {
			return err
		}
		defer svcCtx.Close()
	}

	go svcCtx.Hub.Run(ctx)
	svcCtx.Presence.Start(ctx)
	svcCtx.Presence.OnChange(func(old, new bridge.PresenceState) {
		logging.Infof("Agent presence: %s -> %s", old, new)
	})

	sched, err := maintenance.New(svcCtx.DB)
	if err != nil {
		return fmt.Errorf("init maintenance: %w", err)
	}
	sched.Start(ctx)

	if opts.ConfigPath != "" {
		if err := config.Watch(ctx, opts.ConfigPath, svcCtx.ApplyConfig); err != nil {
			logging.Warnf("Config watch unavailable: %v", err)
		}
	}

	r := chi.NewRouter()

	// Global middleware
	if !opts.Quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(corsMiddleware(serverPort))

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	r.Route("/api/v1", func(r chi.Router) {
		registerAuthRoutes(r, svcCtx)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTMiddleware(svcCtx.Config.Auth.AccessSecret))
			registerProtectedRoutes(r, svcCtx)
		})
	})

	// Agent websocket. The agent identifies itself via query parameter;
	// a reconnect replaces the previous connection.
	r.Get("/ws/agent", func(w http.ResponseWriter, req *http.Request) {
		agentID := httputil.QueryString(req, "id", bridge.DefaultAgentName)
		svcCtx.Hub.HandleWebSocket(w, req, agentID)
	})

	// ReadTimeout/WriteTimeout are intentionally omitted — they set
	// deadlines on the underlying net.Conn which interfere with hijacked
	// WebSocket connections. Keepalive is handled via ping/pong in the
	// bridge package.
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("127.0.0.1:%d", serverPort),
		Handler:     r,
		IdleTimeout: 120 * time.Second,
	}

	if !opts.Quiet {
		fmt.Printf("Server ready at http://localhost:%d\n", serverPort)
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	<-ctx.Done()

	if !opts.Quiet {
		fmt.Println("\nShutting down server gracefully...")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	httpServer.Shutdown(shutdownCtx)
	return nil
}

// registerAuthRoutes registers the unauthenticated login endpoints
func registerAuthRoutes(r chi.Router, svcCtx *svc.ServiceContext) {
	r.Post("/auth/login", authh.LoginHandler(svcCtx))
	r.Post("/auth/refresh", authh.RefreshTokenHandler(svcCtx))
}

// registerProtectedRoutes registers everything behind the JWT middleware
func registerProtectedRoutes(r chi.Router, svcCtx *svc.ServiceContext) {
	// Configuration routes
	r.Get("/config", settings.GetConfigHandler(svcCtx))
	r.Put("/config", settings.UpdateConfigHandler(svcCtx))
	r.Get("/config/status", settings.StatusHandler(svcCtx))
	r.Post("/config/domains", settings.AddDomainHandler(svcCtx))
	r.Delete("/config/domains", settings.RemoveDomainHandler(svcCtx))
	r.Put("/config/categories", settings.SetCategoryHandler(svcCtx))
	r.Put("/config/freetext", settings.SetFreeTextHandler(svcCtx))

	// Preset routes
	r.Get("/presets", preseth.ListPresetsHandler(svcCtx))
	r.Post("/presets", preseth.CreatePresetHandler(svcCtx))
	r.Post("/presets/unload", preseth.UnloadPresetHandler(svcCtx))
	r.Post("/presets/load/confirm", preseth.ConfirmLoadHandler(svcCtx))
	r.Post("/presets/load/cancel", preseth.CancelLoadHandler(svcCtx))
	r.Post("/presets/{id}/load", preseth.LoadPresetHandler(svcCtx))
	r.Put("/presets/{id}", preseth.UpdatePresetHandler(svcCtx))
	r.Patch("/presets/{id}", preseth.RenamePresetHandler(svcCtx))
	r.Delete("/presets/{id}", preseth.DeletePresetHandler(svcCtx))

	// Strict mode routes
	r.Get("/strictmode", strictmode.StatusHandler(svcCtx))
	r.Post("/strictmode", strictmode.ActivateHandler(svcCtx))
	r.Post("/strictmode/deactivate", strictmode.BypassHandler(svcCtx))
	r.Post("/strictmode/unlock-request", strictmode.CreateUnlockRequestHandler(svcCtx))
	r.Post("/strictmode/unlock-request/{requestId}/approve", strictmode.ApproveUnlockHandler(svcCtx))
	r.Put("/strictmode/contact", strictmode.SetContactHandler(svcCtx))
	r.Post("/strictmode/contact/verify", strictmode.VerifyContactHandler(svcCtx))

	// Agent bridge routes
	r.Get("/agent/presence", agenth.PresenceHandler(svcCtx))
	r.Get("/agent/blocklog", agenth.GetBlockLogHandler(svcCtx))
	r.Delete("/agent/blocklog", agenth.ClearBlockLogHandler(svcCtx))
	r.Delete("/agent/blocklog/{id}", agenth.DeleteBlockLogEntryHandler(svcCtx))
	r.Get("/agent/pause", agenth.GetPauseHandler(svcCtx))
	r.Put("/agent/pause", agenth.SetPauseHandler(svcCtx))
	r.Get("/agent/storage", agenth.StorageHandler(svcCtx))
}

// corsMiddleware allows the local frontend origin only.
func corsMiddleware(port int) func(http.Handler) http.Handler {
	allowed := map[string]bool{
		fmt.Sprintf("http://localhost:%d", port): true,
		fmt.Sprintf("http://127.0.0.1:%d", port): true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkPortAvailable verifies the port is free before binding.
func checkPortAvailable(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return err
	}
	return ln.Close()
}
