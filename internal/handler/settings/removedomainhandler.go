package settings

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// RemoveDomainHandler drops one domain from whichever list holds it.
func RemoveDomainHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RemoveDomainRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		next := svcCtx.Saver.Live().WithoutDomain(req.Domain)
		if err := svcCtx.Saver.OnEdit(next); err != nil {
			httputil.Error(w, err)
			return
		}
		writeStatus(w, svcCtx)
	}
}
