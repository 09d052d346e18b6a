package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/blockerinfo"
	"github.com/AdguardTeam/cbupdater/internal/bundlestore"
	"github.com/AdguardTeam/cbupdater/internal/cbupdate"
	"github.com/AdguardTeam/cbupdater/internal/converter"
	"github.com/AdguardTeam/cbupdater/internal/debugsvc"
	"github.com/AdguardTeam/cbupdater/internal/errcoll"
	"github.com/AdguardTeam/cbupdater/internal/filtercat"
	"github.com/AdguardTeam/cbupdater/internal/metrics"
	"github.com/AdguardTeam/cbupdater/internal/notifier"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/cbupdater/internal/rulesource"
	"github.com/AdguardTeam/cbupdater/internal/whitelist"
	"github.com/AdguardTeam/golibs/contextutil"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/prometheus/client_golang/prometheus"
)

// builder contains the logic of configuring and combining together the
// entities of the updater.
type builder struct {
	env  *environment
	conf *configuration

	baseLogger *slog.Logger
	logger     *slog.Logger

	errColl errcoll.Interface

	promGatherer   prometheus.Gatherer
	promRegisterer prometheus.Registerer

	sigHdlr    *service.SignalHandler
	debugRefrs debugsvc.Refreshers

	// The fields below are initialized later by calling the builder's methods.

	blockerInfo *blockerinfo.Cache
	bus         *notifier.Bus
	filterIndex *filtercat.Index
	ruleSource  *rulesource.Storage
	topology    *rulegroup.Topology
	updater     *cbupdate.Updater
	whitelist   *whitelist.List
	idxMetrics  *metrics.FilterIndex
	srcMetrics  *metrics.RuleSource
	updMetrics  *metrics.Update

	mtrcNamespace string
}

// builderConfig contains the initial configuration for the builder.
type builderConfig struct {
	// envs contains the environment variables for the builder.  It must be
	// valid and must not be nil.
	envs *environment

	// conf contains the configuration from the configuration file for the
	// builder.  It must be valid and must not be nil.
	conf *configuration

	// baseLogger is used to create loggers for other entities.  It should not
	// have a prefix and must not be nil.
	baseLogger *slog.Logger

	// errColl is used to collect errors in the entities.  It must not be nil.
	errColl errcoll.Interface
}

// shutdownTimeout is the default shutdown timeout for all services.
const shutdownTimeout = 5 * time.Second

// defaultDirPerm are the permissions of the directories created by the
// updater.
const defaultDirPerm = 0o755

// indexCacheFileName is the name of the file caching the filter index.
const indexCacheFileName = "index.json"

// newBuilder returns a new properly initialized builder.  c must not be nil.
func newBuilder(c *builderConfig) (b *builder) {
	return &builder{
		env:            c.envs,
		conf:           c.conf,
		baseLogger:     c.baseLogger,
		logger:         c.baseLogger.With(slogutil.KeyPrefix, "builder"),
		errColl:        c.errColl,
		promGatherer:   prometheus.DefaultGatherer,
		promRegisterer: prometheus.DefaultRegisterer,
		sigHdlr: service.NewSignalHandler(&service.SignalHandlerConfig{
			Logger:          c.baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix),
			ShutdownTimeout: shutdownTimeout,
		}),
		debugRefrs:    debugsvc.Refreshers{},
		mtrcNamespace: metrics.Namespace,
	}
}

// initDirs creates the directories for the cached filters and the converted
// documents.
func (b *builder) initDirs(ctx context.Context) (err error) {
	for _, dir := range []string{b.env.FilterCachePath, b.env.BundleOutputDir} {
		err = os.MkdirAll(dir, defaultDirPerm)
		if err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}

	b.logger.DebugContext(ctx, "initialized directories")

	return nil
}

// initMetrics initializes the metrics of the entities.
func (b *builder) initMetrics(ctx context.Context) (err error) {
	b.updMetrics, err = metrics.NewUpdate(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("update metrics: %w", err)
	}

	b.srcMetrics, err = metrics.NewRuleSource(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("rule source metrics: %w", err)
	}

	b.idxMetrics, err = metrics.NewFilterIndex(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("filter index metrics: %w", err)
	}

	b.logger.DebugContext(ctx, "initialized metrics")

	return nil
}

// initTopology initializes the rule groups.
func (b *builder) initTopology(ctx context.Context) {
	b.topology = b.conf.Groups.toInternal()

	b.logger.DebugContext(ctx, "initialized topology", "groups", b.topology.Len())
}

// initWhitelist initializes the whitelist.
func (b *builder) initWhitelist(ctx context.Context) (err error) {
	b.whitelist, err = b.conf.Whitelist.toInternal()
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	b.logger.DebugContext(
		ctx,
		"initialized whitelist",
		"domains", len(b.whitelist.Domains(ctx)),
		"inverted", !b.whitelist.IsDefaultMode(),
	)

	return nil
}

// initNotifier initializes the event bus and its subscribers: the bundle store
// and the blocker-info cache.
//
// [builder.initTopology] must be called before this method.
func (b *builder) initNotifier(ctx context.Context) {
	b.bus = notifier.New()

	store := bundlestore.New(&bundlestore.Config{
		Logger:    b.baseLogger.With(slogutil.KeyPrefix, "bundlestore"),
		Publisher: b.bus,
		Dir:       b.env.BundleOutputDir,
	})

	b.blockerInfo = blockerinfo.New(&blockerinfo.Config{
		Logger:   b.baseLogger.With(slogutil.KeyPrefix, "blockerinfo"),
		Topology: b.topology,
	})

	b.bus.Subscribe(store)
	b.bus.Subscribe(b.blockerInfo)

	b.logger.DebugContext(ctx, "initialized notifier")
}

// initUpdater initializes the update pipeline and starts it.
//
// The following methods must be called before this one:
//   - [builder.initMetrics]
//   - [builder.initNotifier]
//   - [builder.initWhitelist]
func (b *builder) initUpdater(ctx context.Context) (err error) {
	cbConf := b.conf.ContentBlockers

	// The rule source and the index are filled in [builder.initFilters].
	b.ruleSource, err = rulesource.New(&rulesource.Config{
		Logger:    b.baseLogger.With(slogutil.KeyPrefix, "rulesource"),
		ErrColl:   b.errColl,
		Metrics:   b.srcMetrics,
		Lists:     b.conf.Filters.Lists.toInternal(),
		CacheDir:  b.env.FilterCachePath,
		Staleness: time.Duration(b.conf.Filters.Staleness),
		Timeout:   time.Duration(b.conf.Filters.RefreshTimeout),
		MaxSize:   b.env.FilterMaxSize,
	})
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	b.filterIndex, err = filtercat.New(&filtercat.Config{
		Logger:    b.baseLogger.With(slogutil.KeyPrefix, "filtercat"),
		ErrColl:   b.errColl,
		Metrics:   b.idxMetrics,
		URL:       &b.env.FilterIndexURL.URL,
		CachePath: filepath.Join(b.env.FilterCachePath, indexCacheFileName),
		Staleness: time.Duration(b.conf.Filters.Staleness),
		Timeout:   time.Duration(b.conf.Filters.RefreshTimeout),
		MaxSize:   b.env.FilterMaxSize,
	})
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	b.updater = cbupdate.New(&cbupdate.Config{
		Logger:  b.baseLogger.With(slogutil.KeyPrefix, "cbupdate"),
		ErrColl: b.errColl,
		Metrics: b.updMetrics,
		Assigner: rulegroup.NewAssigner(&rulegroup.AssignerConfig{
			Logger:   b.baseLogger.With(slogutil.KeyPrefix, "rulegroup"),
			Topology: b.topology,
			Index:    b.filterIndex,
		}),
		Converter: converter.NewExec(&converter.ExecConfig{
			Logger:        b.baseLogger.With(slogutil.KeyPrefix, "converter"),
			Path:          b.env.ConverterPath,
			RulesLimit:    cbConf.RulesLimit,
			MaxOutputSize: cbConf.MaxOutputSize,
		}),
		Publisher:  b.bus,
		RuleSource: b.ruleSource,
		Whitelist:  b.whitelist,
		Settings: &settings{
			whitelist:         b.whitelist,
			filteringDisabled: bool(b.env.FilteringDisabled),
		},
		AdvancedBlockingBundleID: cbConf.advancedBundleID(),
		Debounce:                 time.Duration(cbConf.Debounce),
		ConverterTimeout:         time.Duration(cbConf.ConverterTimeout),
	})

	err = b.updater.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting updater: %w", err)
	}

	b.sigHdlr.AddService(b.updater)

	b.debugRefrs[debugIDContentBlockers] = b.updater

	b.logger.DebugContext(ctx, "initialized updater")

	return nil
}

// initFilters performs the initial refresh of the filter index and the filter
// lists and starts their refresh workers.  The failures of single filter lists
// are not critical.
//
// [builder.initUpdater] must be called before this method.
func (b *builder) initFilters(ctx context.Context) (err error) {
	refrTimeout := time.Duration(b.conf.Filters.RefreshTimeout)
	refrIvl := time.Duration(b.conf.Filters.RefreshIvl)

	initCtx, cancel := context.WithTimeout(ctx, refrTimeout)
	defer cancel()

	err = b.filterIndex.RefreshInitial(initCtx)
	if err != nil {
		return fmt.Errorf("initial refresh of filter index: %w", err)
	}

	err = b.ruleSource.RefreshInitial(initCtx)
	if err != nil {
		b.logger.WarnContext(ctx, "initial refresh of filter lists", slogutil.KeyError, err)
	}

	refrs := []struct {
		refr service.Refresher
		id   debugsvc.RefresherID
	}{{
		refr: b.filterIndex,
		id:   debugIDFilterIndex,
	}, {
		refr: b.ruleSource,
		id:   debugIDFilterLists,
	}}

	for _, r := range refrs {
		refr := &updatingRefresher{
			refr:    r.refr,
			updater: b.updater,
		}

		worker := service.NewRefreshWorker(&service.RefreshWorkerConfig{
			ContextConstructor: contextutil.NewTimeoutConstructor(refrTimeout),
			ErrorHandler:       newSlogErrorHandler(b.baseLogger, r.id+"_refresh"),
			Refresher:          refr,
			Schedule:           timeutil.NewConstSchedule(refrIvl),
			RefreshOnShutdown:  false,
		})

		err = worker.Start(context.WithoutCancel(ctx))
		if err != nil {
			return fmt.Errorf("starting %s refresher: %w", r.id, err)
		}

		b.sigHdlr.AddService(worker)

		b.debugRefrs[r.id] = refr
	}

	b.logger.DebugContext(ctx, "initialized filters", "groups", b.filterIndex.Groups())

	return nil
}

// mustInitDebugSvc initializes and starts the debug HTTP service.
//
// [builder.initFilters] must be called before this method.
func (b *builder) mustInitDebugSvc(ctx context.Context) {
	debugSvc := debugsvc.New(&debugsvc.Config{
		Logger:      b.baseLogger.With(slogutil.KeyPrefix, "debugsvc"),
		Gatherer:    b.promGatherer,
		Updater:     b.updater,
		BlockerInfo: b.blockerInfo,
		Refreshers:  b.debugRefrs,
		Addr:        b.env.debugAddr(),
	})

	// The debug HTTP service is considered critical, so a failure to start it
	// is fatal.
	err := debugSvc.Start(context.WithoutCancel(ctx))
	if err != nil {
		panic(fmt.Errorf("starting debug service: %w", err))
	}

	b.sigHdlr.AddService(debugSvc)

	b.logger.DebugContext(
		ctx,
		"initialized debug",
		"refr_ids", slices.Sorted(maps.Keys(b.debugRefrs)),
	)
}

// handleSignals blocks and processes signals from the OS.  status is
// [osutil.ExitCodeSuccess] on success and [osutil.ExitCodeFailure] on error.
//
// handleSignals must not be called concurrently with any other methods.
func (b *builder) handleSignals(ctx context.Context) (code osutil.ExitCode) {
	return b.sigHdlr.Handle(ctx)
}
