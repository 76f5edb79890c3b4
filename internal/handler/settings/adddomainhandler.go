package settings

import (
	"fmt"
	"net/http"

	"github.com/blockboard/blockboard/internal/httputil"
	"github.com/blockboard/blockboard/internal/rules"
	"github.com/blockboard/blockboard/internal/svc"
	"github.com/blockboard/blockboard/internal/types"
)

// AddDomainHandler adds one domain to the block or allow list. Adding
// to one list removes it from the other.
func AddDomainHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AddDomainRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		live := svcCtx.Saver.Live()
		var (
			next rules.Configuration
			err  error
		)
		switch req.List {
		case "block":
			next, err = live.WithBlockDomain(req.Domain)
		case "allow":
			next, err = live.WithAllowDomain(req.Domain)
		default:
			httputil.Error(w, fmt.Errorf("list must be %q or %q", "block", "allow"))
			return
		}
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
