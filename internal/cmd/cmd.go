// Package cmd is the content-blocker updater entry point.  It contains the
// on-disk configuration file utilities, signal processing logic, and so on.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"github.com/AdguardTeam/cbupdater/internal/errcoll"
	"github.com/AdguardTeam/cbupdater/internal/metrics"
	"github.com/AdguardTeam/cbupdater/internal/version"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/sentryutil"
)

// Main is the entry point of application.
func Main() {
	ctx := context.Background()

	envs := errors.Must(parseEnvironment())
	errors.Check(envs.Validate())

	lvl := errors.Must(slogutil.VerbosityToLevel(envs.Verbosity))
	baseLogger := slogutil.New(&slogutil.Config{
		// Don't use [slogutil.NewFormat] here, because the value is validated.
		Format:       slogutil.Format(envs.LogFormat),
		AddTimestamp: bool(envs.LogTimestamp),
		Level:        lvl,
	})

	sentryutil.SetDefaultLogger(baseLogger, "")

	mainLogger := baseLogger.With(slogutil.KeyPrefix, "main")

	// Signal service startup now that we have the logs set up.
	branch := version.Branch()
	commitTime := version.CommitTime()
	buildVersion := version.Version()
	revision := version.Revision()
	mainLogger.InfoContext(
		ctx,
		"cbupdater starting",
		"version", buildVersion,
		"revision", revision,
		"branch", branch,
		"commit_time", commitTime,
	)

	errColl := errors.Must(envs.buildErrColl())

	defer reportPanics(ctx, errColl, mainLogger)

	c := errors.Must(parseConfig(envs.ConfPath))

	errors.Check(c.Validate())

	b := newBuilder(&builderConfig{
		envs:       envs,
		conf:       c,
		baseLogger: baseLogger,
		errColl:    errColl,
	})

	errors.Check(b.initDirs(ctx))

	errors.Check(b.initMetrics(ctx))

	b.initTopology(ctx)

	errors.Check(b.initWhitelist(ctx))

	b.initNotifier(ctx)

	errors.Check(b.initUpdater(ctx))

	errors.Check(b.initFilters(ctx))

	b.mustInitDebugSvc(ctx)

	// Convert the rules loaded during the initial refresh.
	b.updater.RequestUpdate()

	// Signal that the updater is started.
	errors.Check(metrics.SetUpGauge(
		b.mtrcNamespace,
		b.promRegisterer,
		buildVersion,
		commitTime,
		branch,
		revision,
		runtime.Version(),
	))

	os.Exit(b.handleSignals(ctx))
}

// reportPanics reports all panics in Main using the error collector, logs
// them, and repanics.  It should be called in a defer.
func reportPanics(ctx context.Context, errColl errcoll.Interface, l *slog.Logger) {
	v := recover()
	if v == nil {
		return
	}

	err := errors.FromRecovered(v)
	l.ErrorContext(ctx, "recovered from panic", slogutil.KeyError, err)
	slogutil.PrintStack(ctx, l, slog.LevelError)

	errColl.Collect(ctx, err)
	if flusher, ok := errColl.(errcoll.ErrorFlushCollector); ok {
		flusher.Flush()
	}

	panic(v)
}
