package settings

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func SetCategoryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SetCategoryRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		next, err := svcCtx.Saver.Live().WithCategory(req.Category, req.Enabled)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		if err := svcCtx.Saver.OnEdit(next); err != nil {
			httputil.Error(w, err)
			return
		}
		writeStatus(w, svcCtx)
	}
}
