package strictmode

import (
	"fmt"
	"net/http"
	"time"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// ActivateHandler turns strict mode on, timed or indefinite.
func ActivateHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ActivateStrictModeRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		var err error
		if req.Indefinite {
			err = svcCtx.StrictMode.ActivateIndefinite(r.Context())
		} else {
			if req.DurationMinutes <= 0 {
				httputil.Error(w, fmt.Errorf("durationMinutes must be positive"))
				return
			}
			err = svcCtx.StrictMode.Activate(r.Context(), time.Duration(req.DurationMinutes)*time.Minute)
		}
		if err != nil {
			httputil.Error(w, err)
			return
		}

		logging.Infof("Strict mode activated (indefinite=%v)", req.Indefinite)
		httputil.OkJSON(w, map[string]string{"state": string(svcCtx.StrictMode.State())})
	}
}

// BypassHandler is the emergency unlock, limited to one use per
// rolling week.
func BypassHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svcCtx.StrictMode.Bypass(r.Context()); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, map[string]string{"state": string(svcCtx.StrictMode.State())})
	}
}
