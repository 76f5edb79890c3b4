package preset

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// LoadPresetHandler replaces the live configuration with a preset's
// snapshot. With unsaved edits present it answers 409 and parks the
// load for ConfirmLoadHandler.
func LoadPresetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadPresetRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := svcCtx.Presets.Load(r.Context(), req.ID); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, map[string]string{"status": "loaded"})
	}
}

// ConfirmLoadHandler executes the parked load, discarding unsaved
// edits.
func ConfirmLoadHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svcCtx.Presets.ConfirmLoad(r.Context()); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, map[string]string{"status": "loaded"})
	}
}

// CancelLoadHandler clears a parked load without applying it.
func CancelLoadHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svcCtx.Presets.CancelPendingLoad()
		httputil.OkJSON(w, map[string]string{"status": "cancelled"})
	}
}
