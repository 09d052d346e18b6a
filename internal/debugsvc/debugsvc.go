// Package debugsvc contains the debug HTTP API of the updater.
package debugsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/AdguardTeam/cbupdater/internal/blockerinfo"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path pattern constants.
const (
	PathPatternContentBlockers = "/debug/api/content-blockers"
	PathPatternDebugAPIRefresh = "/debug/api/refresh"
	PathPatternDebugAPIUpdate  = "/debug/api/update"
	PathPatternHealthCheck     = "/health-check"
	PathPatternMetrics         = "/metrics"
)

// Route pattern constants.
const (
	routePatternContentBlockers = http.MethodGet + " " + PathPatternContentBlockers
	routePatternDebugAPIRefresh = http.MethodPost + " " + PathPatternDebugAPIRefresh
	routePatternDebugAPIUpdate  = http.MethodPost + " " + PathPatternDebugAPIUpdate
	routePatternHealthCheck     = http.MethodGet + " " + PathPatternHealthCheck
	routePatternMetrics         = http.MethodGet + " " + PathPatternMetrics
)

// UpdateRequester requests debounced updates of the content blockers.
type UpdateRequester interface {
	// RequestUpdate requests an update and returns immediately.
	RequestUpdate()
}

// BlockerInfo returns the metadata of the content blockers.
type BlockerInfo interface {
	// All returns the entries of all bundles.
	All(ctx context.Context) (entries []*blockerinfo.Entry)
}

// Config is the configuration structure for the debug HTTP service.
type Config struct {
	// Logger is used to log the requests.  It must not be nil.
	Logger *slog.Logger

	// Gatherer is used to serve the metrics.  It must not be nil.
	Gatherer prometheus.Gatherer

	// Updater is used to request updates.  It must not be nil.
	Updater UpdateRequester

	// BlockerInfo is used to serve the metadata of the content blockers.  It
	// must not be nil.
	BlockerInfo BlockerInfo

	// Refreshers are the entities that can be refreshed through the API.
	Refreshers Refreshers

	// Addr is the address to listen on.  It must not be empty.
	Addr string
}

// Service is the debug HTTP service of the updater.  It serves the metrics, the
// health check, and the debug API.
type Service struct {
	logger   *slog.Logger
	http     *http.Server
	handler  http.Handler
	refrHdlr *refreshHandler
	updHdlr  *updateHandler
	infoHdlr *infoHandler

	// mu protects listener.
	mu       *sync.Mutex
	listener net.Listener
}

// New returns a new properly initialized *Service.  c must not be nil and must
// be valid.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger: c.Logger,
		refrHdlr: &refreshHandler{
			refrs: c.Refreshers,
		},
		updHdlr: &updateHandler{
			updater: c.Updater,
		},
		infoHdlr: &infoHandler{
			info: c.BlockerInfo,
		},
		mu: &sync.Mutex{},
	}

	mux := http.NewServeMux()
	mux.Handle(routePatternHealthCheck, svc.middleware(
		http.HandlerFunc(serveHealthCheck),
		slogutil.LevelTrace,
	))
	mux.Handle(routePatternMetrics, svc.middleware(
		promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{}),
		slogutil.LevelTrace,
	))
	mux.Handle(routePatternDebugAPIRefresh, svc.middleware(svc.refrHdlr, slog.LevelInfo))
	mux.Handle(routePatternDebugAPIUpdate, svc.middleware(svc.updHdlr, slog.LevelInfo))
	mux.Handle(routePatternContentBlockers, svc.middleware(svc.infoHdlr, slog.LevelDebug))

	svc.handler = mux
	svc.http = &http.Server{
		Addr:     c.Addr,
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(c.Logger.Handler(), slog.LevelDebug),
		// #nosec G112 -- Do not set the timeouts, since the refresh API may be
		// busy for a long time.
	}

	return svc
}

// Handler returns the HTTP handler of all endpoints of the service.
func (svc *Service) Handler() (h http.Handler) {
	return svc.handler
}

// LocalAddr returns the address the service listens on.  It returns nil if
// the service hasn't been started.
func (svc *Service) LocalAddr() (addr net.Addr) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.listener == nil {
		return nil
	}

	return svc.listener.Addr()
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// listening and serving in a separate goroutine.
func (svc *Service) Start(ctx context.Context) (err error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", svc.http.Addr)
	if err != nil {
		return fmt.Errorf("debugsvc: listening on %q: %w", svc.http.Addr, err)
	}

	svc.mu.Lock()
	svc.listener = l
	svc.mu.Unlock()

	svc.logger.InfoContext(ctx, "listening", "addr", l.Addr())

	go svc.serve(ctx, l)

	return nil
}

// serve serves the HTTP API on l.  It is intended to be used as a goroutine.
func (svc *Service) serve(ctx context.Context, l net.Listener) {
	defer slogutil.RecoverAndLog(ctx, svc.logger)

	err := svc.http.Serve(l)
	if !errors.Is(err, http.ErrServerClosed) {
		svc.logger.ErrorContext(ctx, "serving", slogutil.KeyError, err)
	}
}

// Shutdown implements the [service.Interface] interface for *Service.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	err = svc.http.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("debugsvc: shutting down: %w", err)
	}

	svc.logger.InfoContext(ctx, "shut down")

	return nil
}
