package preset

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func RenamePresetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RenamePresetRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := svcCtx.Presets.Rename(r.Context(), req.ID, req.Name); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, map[string]string{"status": "renamed"})
	}
}
