package preset

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// DeletePresetHandler removes a preset. Deleting the active one also
// resets the live configuration to empty.
func DeletePresetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.DeletePresetRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := svcCtx.Presets.Delete(r.Context(), req.ID); err != nil {
			httputil.Error(w, err)
			return
		}
		logging.Infof("Preset deleted: %s", req.ID)
		httputil.OkJSON(w, map[string]string{"status": "deleted"})
	}
}

// UnloadPresetHandler detaches the active preset and resets the live
// configuration to empty without deleting anything.
func UnloadPresetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svcCtx.Presets.Unload(r.Context()); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, map[string]string{"status": "unloaded"})
	}
}
