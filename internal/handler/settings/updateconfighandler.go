package settings

import (
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/rules"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// UpdateConfigHandler accepts a full configuration value and feeds it
// into the debounced autosave path. Domains are validated and
// normalized before the edit is accepted.
func UpdateConfigHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UpdateConfigRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		cfg := rules.Empty()
		cfg = cfg.WithFreeText(req.Configuration.FreeText)
		for id, enabled := range req.Configuration.CategoryFlags {
			next, err := cfg.WithCategory(id, enabled)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			cfg = next
		}
		for _, d := range req.Configuration.BlockList {
			next, err := cfg.WithBlockDomain(d)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			cfg = next
		}
		for _, d := range req.Configuration.AllowList {
			next, err := cfg.WithAllowDomain(d)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			cfg = next
		}

		if err := svcCtx.Saver.OnEdit(cfg); err != nil {
			httputil.Error(w, err)
			return
		}
		writeStatus(w, svcCtx)
	}
}
