package cmd

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/cbupdater/internal/debugsvc"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
)

// Debug refresher identifiers.
const (
	debugIDContentBlockers debugsvc.RefresherID = "content_blockers"
	debugIDFilterIndex     debugsvc.RefresherID = "filter_index"
	debugIDFilterLists     debugsvc.RefresherID = "filter_lists"
)

// updateRequester requests updates of the content blockers.
type updateRequester interface {
	RequestUpdate()
}

// updatingRefresher is a [service.Refresher] that requests an update of the
// content blockers after every refresh of the underlying refresher, including
// the failed ones.
type updatingRefresher struct {
	refr    service.Refresher
	updater updateRequester
}

// type check
var _ service.Refresher = (*updatingRefresher)(nil)

// Refresh implements the [service.Refresher] interface for *updatingRefresher.
func (r *updatingRefresher) Refresh(ctx context.Context) (err error) {
	defer r.updater.RequestUpdate()

	return r.refr.Refresh(ctx)
}

// newSlogErrorHandler is a helper that returns a new service.SlogErrorHandler
// for refresh workers.
func newSlogErrorHandler(baseLogger *slog.Logger, prefix string) (h *service.SlogErrorHandler) {
	return service.NewSlogErrorHandler(
		baseLogger.With(slogutil.KeyPrefix, prefix),
		slog.LevelError,
		"refreshing",
	)
}
