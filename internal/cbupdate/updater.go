package cbupdate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/cbupdater/internal/converter"
	"github.com/AdguardTeam/cbupdater/internal/errcoll"
	"github.com/AdguardTeam/cbupdater/internal/notifier"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/cbupdater/internal/whitelist"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
)

// unit is a convenient alias for struct{}.
type unit = struct{}

// emptyDocument is the converted document without any rules.
const emptyDocument = "[]"

// DefaultDebounce is the default quiet period after the last update request
// before the pipeline runs.
const DefaultDebounce = 500 * time.Millisecond

// Config is the configuration structure for an [Updater].
type Config struct {
	// Logger is used to log the operation of the pipeline.  It must not be
	// nil.
	Logger *slog.Logger

	// ErrColl is used to collect non-critical errors.  It must not be nil.
	ErrColl errcoll.Interface

	// Metrics is used to collect the statistics.  It must not be nil.
	Metrics Metrics

	// Assigner distributes the rules among the groups.  It must not be nil.
	Assigner *rulegroup.Assigner

	// Converter converts the rules of every group.  It must not be nil.
	Converter converter.Interface

	// Publisher receives the events of the pipeline.  It must not be nil.
	Publisher notifier.Publisher

	// RuleSource is the source of the rules.  It must not be nil.
	RuleSource RuleSource

	// Whitelist is the source of the whitelisted domains.  It must not be nil.
	Whitelist Whitelist

	// Settings is the source of the user settings.  It must not be nil.
	Settings Settings

	// AdvancedBlockingBundleID is the identifier of the bundle receiving the
	// advanced-blocking document.  It must not be empty.
	AdvancedBlockingBundleID rulegroup.BundleID

	// Debounce is the quiet period after the last update request before the
	// pipeline runs.  It must be positive.
	Debounce time.Duration

	// ConverterTimeout is the timeout for a single converter call.  It must be
	// positive.
	ConverterTimeout time.Duration
}

// Updater is the debounced content-blocker update pipeline.  At most one run
// of the pipeline is in progress at any time.
type Updater struct {
	logger    *slog.Logger
	errColl   errcoll.Interface
	metrics   Metrics
	assigner  *rulegroup.Assigner
	converter converter.Interface
	publisher notifier.Publisher
	rules     RuleSource
	whitelist Whitelist
	settings  Settings

	// runMu prevents the runs requested through [Updater.Refresh] from
	// overlapping with the debounced ones.
	runMu *sync.Mutex

	// reqCh is the single-slot pending update signal.
	reqCh chan unit

	done    chan unit
	stopped chan unit

	advancedBundleID rulegroup.BundleID
	debounce         time.Duration
	convTimeout      time.Duration
}

// New returns a new properly initialized *Updater.  c must not be nil and
// must be valid.
func New(c *Config) (u *Updater) {
	return &Updater{
		logger:           c.Logger,
		errColl:          c.ErrColl,
		metrics:          c.Metrics,
		assigner:         c.Assigner,
		converter:        c.Converter,
		publisher:        c.Publisher,
		rules:            c.RuleSource,
		whitelist:        c.Whitelist,
		settings:         c.Settings,
		runMu:            &sync.Mutex{},
		reqCh:            make(chan unit, 1),
		done:             make(chan unit),
		stopped:          make(chan unit),
		advancedBundleID: c.AdvancedBlockingBundleID,
		debounce:         c.Debounce,
		convTimeout:      c.ConverterTimeout,
	}
}

// RequestUpdate signals that the rules should be converted and published
// again.  It never blocks.  All requests made within the debounce period are
// coalesced into a single run that uses the rules current at the time of the
// run.  RequestUpdate may be called before [Updater.Start].
func (u *Updater) RequestUpdate() {
	select {
	case u.reqCh <- unit{}:
	default:
		// An update is already pending.
	}
}

// type check
var _ service.Interface = (*Updater)(nil)

// Start implements the [service.Interface] interface for *Updater.  err is
// always nil.
func (u *Updater) Start(_ context.Context) (err error) {
	go u.debounceLoop()

	return nil
}

// Shutdown implements the [service.Interface] interface for *Updater.  It
// waits for the current run to finish.  Shutdown must only be called once and
// only after [Updater.Start].
func (u *Updater) Shutdown(ctx context.Context) (err error) {
	close(u.done)

	select {
	case <-u.stopped:
		u.logger.InfoContext(ctx, "shut down successfully")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for update loop: %w", ctx.Err())
	}
}

// debounceLoop runs the pipeline once the debounce period has passed after
// the last update request.  It returns when u.done is closed.
func (u *Updater) debounceLoop() {
	defer close(u.stopped)

	ctx := context.Background()
	defer slogutil.RecoverAndLog(ctx, u.logger)

	u.logger.InfoContext(ctx, "starting update loop", "debounce", u.debounce)

	timer := time.NewTimer(u.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-u.done:
			u.logger.InfoContext(ctx, "finished update loop")

			return
		case <-u.reqCh:
			timer.Reset(u.debounce)
		case <-timer.C:
			u.runDebounced(ctx)
		}
	}
}

// runDebounced runs the pipeline and logs the error, if any.
func (u *Updater) runDebounced(ctx context.Context) {
	defer slogutil.RecoverAndLog(ctx, u.logger)

	err := u.Refresh(ctx)
	if err != nil {
		u.logger.WarnContext(ctx, "update finished with errors", slogutil.KeyError, err)
	}
}

// type check
var _ service.Refresher = (*Updater)(nil)

// Refresh implements the [service.Refresher] interface for *Updater.  It runs
// the pipeline immediately, waiting for the current run, if any, to finish.
// err is not nil if publishing any of the events has failed.  Conversion
// errors are not returned.
func (u *Updater) Refresh(ctx context.Context) (err error) {
	u.runMu.Lock()
	defer u.runMu.Unlock()

	start := time.Now()
	ev, err := u.update(ctx)
	u.metrics.ObserveUpdate(ctx, ev, time.Since(start), err)

	return err
}

// update converts the current rules and publishes the results.  ev is nil if
// filtering is disabled.
func (u *Updater) update(ctx context.Context) (ev *cblocker.UpdateCompleted, err error) {
	if u.settings.IsFilteringDisabled(ctx) {
		u.logger.InfoContext(ctx, "filtering is disabled, skipping update")

		return nil, nil
	}

	u.logger.InfoContext(ctx, "loading content blocker")

	rules := u.loadRules(ctx)
	results := u.assigner.GroupRules(ctx, rules)

	var errs []error
	overLimit := false
	for _, res := range results {
		var groupOverLimit bool
		groupOverLimit, err = u.updateGroup(ctx, res)
		if err != nil {
			errs = append(errs, err)
		}

		overLimit = overLimit || groupOverLimit
	}

	advancedCount, err := u.updateAdvanced(ctx, rulegroup.Texts(rules))
	if err != nil {
		errs = append(errs, err)
	}

	ev = &cblocker.UpdateCompleted{
		RulesCount:                 countRules(rules),
		AdvancedBlockingRulesCount: advancedCount,
		RulesOverLimit:             overLimit,
	}

	err = u.publisher.Publish(ctx, ev)
	if err != nil {
		errcoll.Collect(ctx, u.errColl, u.logger, "publishing update completed", err)
		errs = append(errs, fmt.Errorf("publishing update completed: %w", err))
	}

	u.logger.InfoContext(
		ctx,
		"content blocker updated",
		"rules", ev.RulesCount,
		"over_limit", ev.RulesOverLimit,
		"advanced_rules", ev.AdvancedBlockingRulesCount,
	)

	return ev, errors.Join(errs...)
}

// loadRules returns the current rules along with the whitelist rules.  The
// whitelist rules are tagged with [rulegroup.FilterIDUser] so that they get
// into every group.
func (u *Updater) loadRules(ctx context.Context) (rules []*rulegroup.Rule) {
	rules = slices.Clone(u.rules.Rules(ctx))

	u.logger.InfoContext(ctx, "rules loaded", "num", len(rules))

	if !u.settings.IsDefaultWhitelistMode(ctx) {
		return append(rules, &rulegroup.Rule{
			Text:     whitelist.InvertedRule(u.whitelist.Domains(ctx)),
			FilterID: rulegroup.FilterIDUser,
		})
	}

	for _, text := range u.whitelist.Rules(ctx) {
		rules = append(rules, &rulegroup.Rule{
			Text:     text,
			FilterID: rulegroup.FilterIDUser,
		})
	}

	return rules
}

// updateGroup converts the rules of a single group and publishes the result.
// overLimit is true if the converter has produced a document and reported
// that the rules are over the limit.
func (u *Updater) updateGroup(
	ctx context.Context,
	res *rulegroup.Result,
) (overLimit bool, err error) {
	g := res.Group
	ctx = errcoll.ContextWithBundleID(ctx, string(g.BundleID))

	conv := u.convert(ctx, rulegroup.Texts(res.Rules), false)

	info := &cblocker.DispatchInfo{
		BundleID:       g.BundleID,
		FilterGroupIDs: g.FilterGroupIDs,
	}

	doc := cblocker.EmptyBlockerJSON
	if conv != nil {
		info.RulesCount = conv.TotalConvertedCount
		info.OverLimit = conv.OverLimit

		if conv.Converted != "" && conv.Converted != emptyDocument {
			doc = conv.Converted
			overLimit = conv.OverLimit
		}
	}

	return overLimit, u.dispatch(ctx, doc, info)
}

// updateAdvanced converts all rules in the advanced mode and publishes the
// advanced-blocking document.  n is the number of rules in the document.
func (u *Updater) updateAdvanced(ctx context.Context, texts []string) (n int, err error) {
	ctx = errcoll.ContextWithBundleID(ctx, string(u.advancedBundleID))

	conv := u.convert(ctx, texts, true)

	info := &cblocker.DispatchInfo{
		BundleID: u.advancedBundleID,
	}

	doc := cblocker.EmptyAdvancedJSON
	if conv != nil {
		info.RulesCount = conv.TotalConvertedCount
		n = conv.AdvancedBlockingConvertedCount

		if conv.AdvancedBlocking != "" {
			doc = conv.AdvancedBlocking
		}
	}

	return n, u.dispatch(ctx, doc, info)
}

// convert calls the converter with the timeout.  res is nil if the conversion
// has failed.
func (u *Updater) convert(ctx context.Context, texts []string, advanced bool) (res *converter.Result) {
	ctx, cancel := context.WithTimeout(ctx, u.convTimeout)
	defer cancel()

	start := time.Now()
	res, err := u.converter.Convert(ctx, texts, advanced)
	u.metrics.ObserveConversion(ctx, advanced, time.Since(start), err)
	if err != nil {
		errcoll.Collect(ctx, u.errColl, u.logger, "converting rules", err)

		return nil
	}

	return res
}

// dispatch publishes the document for the bundle of info.  If publishing
// fails, info is marked as having an error.
func (u *Updater) dispatch(ctx context.Context, doc string, info *cblocker.DispatchInfo) (err error) {
	u.logger.InfoContext(
		ctx,
		"setting content blocker json",
		"bundle_id", info.BundleID,
		"rules", info.RulesCount,
		"json_len", len(doc),
	)

	err = u.publisher.Publish(ctx, &cblocker.DispatchRequired{
		Info:     info,
		BundleID: info.BundleID,
		JSON:     doc,
	})
	if err != nil {
		info.HasError = true
		err = fmt.Errorf("publishing json for %q: %w", info.BundleID, err)
		errcoll.Collect(ctx, u.errColl, u.logger, "setting content blocker json", err)
	}

	u.metrics.SetDispatchInfo(ctx, info)

	return err
}

// countRules returns the number of rules which aren't comments.
func countRules(rules []*rulegroup.Rule) (n int) {
	for _, r := range rules {
		if r != nil && !r.IsComment() {
			n++
		}
	}

	return n
}
