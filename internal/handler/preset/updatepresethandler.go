package preset

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
)

// UpdatePresetHandler overwrites the active preset's snapshot with the
// live configuration.
func UpdatePresetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svcCtx.Presets.Update(r.Context()); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, map[string]string{"status": "updated"})
	}
}
