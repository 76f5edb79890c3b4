package strictmode

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// CreateUnlockRequestHandler opens an unlock request for out-of-band
// approval. The reconcile poll picks up the approval.
func CreateUnlockRequestHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := svcCtx.DB.CreateUnlockRequest(r.Context(), svcCtx.UserID)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		logging.Infof("Unlock request opened: %s", id)
		httputil.OkJSON(w, &types.UnlockRequestResponse{RequestID: id})
	}
}

// ApproveUnlockHandler marks an unlock request approved. In a full
// deployment this sits behind the accountability contact's email link;
// here it is an authenticated endpoint.
func ApproveUnlockHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ApproveUnlockRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := svcCtx.DB.ApproveUnlockRequest(r.Context(), req.RequestID); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, map[string]string{"status": "approved"})
	}
}
