package agent

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// StorageHandler reports the agent's storage footprint. An unanswered
// request degrades to zero usage.
func StorageHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usage, answered := svcCtx.Bridge.StorageUsage(r.Context())
		httputil.OkJSON(w, &types.StorageUsageResponse{
			UsedBytes:  usage.UsedBytes,
			QuotaBytes: usage.MaxBytes,
			Degraded:   !answered,
		})
	}
}
