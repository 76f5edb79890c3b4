// Package strictmode exposes the strict mode lock over HTTP.
package strictmode

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func StatusHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := &types.StrictModeStatusResponse{
			State: string(svcCtx.StrictMode.State()),
		}
		if until := svcCtx.StrictMode.ActiveUntil(); until != nil {
			resp.ActiveUntil = until.UnixMilli()
			resp.RemainingSeconds = int64(svcCtx.StrictMode.Remaining().Seconds())
		}
		httputil.OkJSON(w, resp)
	}
}
