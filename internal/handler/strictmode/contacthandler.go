package strictmode

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// SetContactHandler records the accountability contact required for
// indefinite strict mode.
func SetContactHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AccountabilityContactRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := svcCtx.DB.SetAccountabilityContact(r.Context(), svcCtx.UserID, req.Email); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, map[string]string{"status": "pending_verification"})
	}
}

// VerifyContactHandler marks the contact verified. A full deployment
// drives this from an emailed link.
func VerifyContactHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svcCtx.DB.VerifyAccountabilityContact(r.Context(), svcCtx.UserID); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, map[string]string{"status": "verified"})
	}
}
