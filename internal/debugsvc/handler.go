package debugsvc

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/AdguardTeam/cbupdater/internal/agdhttp"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// serveHealthCheck handles the GET /health-check endpoint.
func serveHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(httphdr.ContentType, agdhttp.HdrValTextPlain)
	w.WriteHeader(http.StatusOK)

	_, err := io.WriteString(w, "OK\n")
	if err != nil {
		ctx := r.Context()
		l := slogutil.MustLoggerFromContext(ctx)
		l.DebugContext(ctx, "writing health-check response", slogutil.KeyError, err)
	}
}

// updateHandler requests debounced updates of the content blockers.
type updateHandler struct {
	updater UpdateRequester
}

// type check
var _ http.Handler = (*updateHandler)(nil)

// ServeHTTP implements the [http.Handler] interface for *updateHandler.
func (h *updateHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.updater.RequestUpdate()

	w.WriteHeader(http.StatusAccepted)
}

// infoHandler serves the metadata of the content blockers.
type infoHandler struct {
	info BlockerInfo
}

// type check
var _ http.Handler = (*infoHandler)(nil)

// ServeHTTP implements the [http.Handler] interface for *infoHandler.
func (h *infoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	w.Header().Set(httphdr.ContentType, agdhttp.HdrValApplicationJSON)
	err := json.NewEncoder(w).Encode(h.info.All(ctx))
	if err != nil {
		l := slogutil.MustLoggerFromContext(ctx)
		l.ErrorContext(ctx, "writing response", slogutil.KeyError, err)
	}
}
