package agent

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// GetPauseHandler queries the agent's pause state. An unanswered
// request degrades to not-paused.
func GetPauseHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paused, answered := svcCtx.Bridge.PauseState(r.Context())
		httputil.OkJSON(w, &types.PauseStateResponse{
			Paused:   paused,
			Degraded: !answered,
		})
	}
}

// SetPauseHandler pushes a pause state to the agent. Resuming is
// always allowed; pausing is rejected while strict mode runs.
func SetPauseHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SetPauseStateRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if req.Paused && svcCtx.StrictMode.Locked() {
			// Pausing enforcement while strict mode runs would defeat
			// the lock.
			httputil.ErrorWithCode(w, http.StatusLocked, "cannot pause blocking while strict mode is active")
			return
		}

		svcCtx.Bridge.SetPauseState(req.Paused)
		httputil.OkJSON(w, map[string]any{"status": "requested", "paused": req.Paused})
	}
}
