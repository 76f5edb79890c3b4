// Package settings exposes the live blocking configuration and its
// autosave status over HTTP.
package settings

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func GetConfigHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := svcCtx.DB.CacheVersion(r.Context(), svcCtx.UserID)
		if err != nil {
			logging.Warnf("Cache version read failed: %v", err)
		}

		resp := &types.GetConfigResponse{
			Configuration: svcCtx.Saver.Live(),
			Modified:      svcCtx.Presets.IsModified(),
			Locked:        svcCtx.StrictMode.Locked(),
			CacheVersion:  version,
		}
		if id, ok := svcCtx.Presets.ActivePresetID(); ok {
			resp.ActivePresetID = id
		}
		httputil.OkJSON(w, resp)
	}
}
