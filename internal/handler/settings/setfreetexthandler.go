package settings

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func SetFreeTextHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SetFreeTextRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		next := svcCtx.Saver.Live().WithFreeText(req.FreeText)
		if err := svcCtx.Saver.OnEdit(next); err != nil {
			httputil.Error(w, err)
			return
		}
		writeStatus(w, svcCtx)
	}
}
