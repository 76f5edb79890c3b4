package auth

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func RefreshTokenHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RefreshTokenRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		result, err := svcCtx.Auth.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			httputil.Unauthorized(w, "invalid refresh token")
			return
		}

		httputil.OkJSON(w, &types.LoginResponse{
			Token:        result.Token,
			RefreshToken: result.RefreshToken,
			ExpiresAt:    result.ExpiresAt.UnixMilli(),
		})
	}
}
