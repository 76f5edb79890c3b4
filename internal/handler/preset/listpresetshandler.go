// Package preset exposes preset management over HTTP.
package preset

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func ListPresetsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presets, err := svcCtx.Presets.List(r.Context())
		if err != nil {
			httputil.Error(w, err)
			return
		}

		activeID, _ := svcCtx.Presets.ActivePresetID()
		resp := &types.ListPresetsResponse{
			Presets:        make([]types.PresetInfo, 0, len(presets)),
			ActivePresetID: activeID,
			Modified:       svcCtx.Presets.IsModified(),
		}
		if pending, ok := svcCtx.Presets.PendingLoad(); ok {
			resp.PendingLoadID = pending
		}
		for _, p := range presets {
			resp.Presets = append(resp.Presets, types.PresetInfo{
				ID:        p.ID,
				Name:      p.Name,
				Snapshot:  p.Snapshot,
				CreatedAt: p.CreatedAt.UnixMilli(),
				Active:    p.ID == activeID,
			})
		}
		httputil.OkJSON(w, resp)
	}
}
