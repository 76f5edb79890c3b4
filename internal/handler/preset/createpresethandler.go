package preset

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// CreatePresetHandler saves the live configuration under a new name
// and makes it the active preset.
func CreatePresetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreatePresetRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		p, err := svcCtx.Presets.Create(r.Context(), req.Name, svcCtx.Saver.Live(), req.Overwrite)
		if err != nil {
			httputil.Error(w, err)
			return
		}

		logging.Infof("Preset created: %s", p.Name)
		httputil.OkJSON(w, &types.PresetInfo{
			ID:        p.ID,
			Name:      p.Name,
			Snapshot:  p.Snapshot,
			CreatedAt: p.CreatedAt.UnixMilli(),
			Active:    true,
		})
	}
}
