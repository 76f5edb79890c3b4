package auth

import (
	"errors"
	"net/http"

	"github.com/blockboard/blockboard/internal/auth"
	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func LoginHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoginRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		result, err := svcCtx.Auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				httputil.Unauthorized(w, err.Error())
				return
			}
			logging.Errorf("Login failed for %s: %v", req.Email, err)
			httputil.Error(w, err)
			return
		}

		logging.Infof("User logged in: %s", req.Email)

		httputil.OkJSON(w, &types.LoginResponse{
			Token:        result.Token,
			RefreshToken: result.RefreshToken,
			ExpiresAt:    result.ExpiresAt.UnixMilli(),
		})
	}
}
