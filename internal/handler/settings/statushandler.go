package settings

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func StatusHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, svcCtx)
	}
}

func writeStatus(w http.ResponseWriter, svcCtx *svc.ServiceContext) {
	httputil.OkJSON(w, &types.ConfigStatusResponse{
		Status:         string(svcCtx.Saver.Status()),
		UnsavedChanges: svcCtx.Saver.HasUnsavedChanges(),
	})
}
