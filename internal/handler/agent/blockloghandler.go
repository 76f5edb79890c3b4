package agent

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// GetBlockLogHandler fetches the agent's block log. An unanswered
// request degrades to an empty list rather than an error.
func GetBlockLogHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, answered := svcCtx.Bridge.BlockLog(r.Context())

		resp := &types.BlockLogResponse{
			Entries:  make([]types.BlockLogEntryInfo, 0, len(entries)),
			Degraded: !answered,
		}
		for _, e := range entries {
			resp.Entries = append(resp.Entries, types.BlockLogEntryInfo{
				ID:        e.ID,
				Domain:    e.Domain,
				Category:  e.Category,
				BlockedAt: e.Timestamp,
			})
		}
		httputil.OkJSON(w, resp)
	}
}

// ClearBlockLogHandler asks the agent to drop its block log.
func ClearBlockLogHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svcCtx.Bridge.ClearBlockLog()
		httputil.OkJSON(w, map[string]string{"status": "requested"})
	}
}

// DeleteBlockLogEntryHandler asks the agent to drop one entry.
func DeleteBlockLogEntryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.DeleteBlockLogEntryRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		svcCtx.Bridge.DeleteBlockLogEntry(req.ID)
		httputil.OkJSON(w, map[string]string{"status": "requested"})
	}
}
