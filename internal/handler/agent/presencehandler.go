// Package agent exposes the enforcement agent bridge over HTTP.
package agent

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

func PresenceHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, &types.AgentPresenceResponse{
			State: string(svcCtx.Presence.State()),
		})
	}
}
