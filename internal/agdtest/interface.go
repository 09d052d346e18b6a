package agdtest

import (
	"context"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/cbupdater/internal/cbupdate"
	"github.com/AdguardTeam/cbupdater/internal/converter"
	"github.com/AdguardTeam/cbupdater/internal/debugsvc"
	"github.com/AdguardTeam/cbupdater/internal/errcoll"
	"github.com/AdguardTeam/cbupdater/internal/filtercat"
	"github.com/AdguardTeam/cbupdater/internal/notifier"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/cbupdater/internal/rulesource"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/testutil"
)

// Interface Mocks
//
// Keep entities within a module/package in alphabetic order.

// Module golibs

// type check
var _ service.Refresher = (*Refresher)(nil)

// Refresher is a [service.Refresher] for tests.
type Refresher struct {
	OnRefresh func(ctx context.Context) (err error)
}

// Refresh implements the [service.Refresher] interface for *Refresher.
func (r *Refresher) Refresh(ctx context.Context) (err error) {
	return r.OnRefresh(ctx)
}

// NewRefresher returns a new *Refresher all methods of which panic.
func NewRefresher() (r *Refresher) {
	return &Refresher{
		OnRefresh: func(_ context.Context) (err error) {
			panic(testutil.UnexpectedCall())
		},
	}
}

// Package cbupdate

// type check
var _ cbupdate.RuleSource = (*RuleSource)(nil)

// RuleSource is a [cbupdate.RuleSource] for tests.
type RuleSource struct {
	OnRules func(ctx context.Context) (rules []*rulegroup.Rule)
}

// Rules implements the [cbupdate.RuleSource] interface for *RuleSource.
func (s *RuleSource) Rules(ctx context.Context) (rules []*rulegroup.Rule) {
	return s.OnRules(ctx)
}

// type check
var _ cbupdate.Settings = (*Settings)(nil)

// Settings is a [cbupdate.Settings] for tests.
type Settings struct {
	OnIsFilteringDisabled    func(ctx context.Context) (ok bool)
	OnIsDefaultWhitelistMode func(ctx context.Context) (ok bool)
}

// IsFilteringDisabled implements the [cbupdate.Settings] interface for
// *Settings.
func (s *Settings) IsFilteringDisabled(ctx context.Context) (ok bool) {
	return s.OnIsFilteringDisabled(ctx)
}

// IsDefaultWhitelistMode implements the [cbupdate.Settings] interface for
// *Settings.
func (s *Settings) IsDefaultWhitelistMode(ctx context.Context) (ok bool) {
	return s.OnIsDefaultWhitelistMode(ctx)
}

// type check
var _ cbupdate.Whitelist = (*Whitelist)(nil)

// Whitelist is a [cbupdate.Whitelist] for tests.
type Whitelist struct {
	OnRules   func(ctx context.Context) (ruleTexts []string)
	OnDomains func(ctx context.Context) (domains []string)
}

// Rules implements the [cbupdate.Whitelist] interface for *Whitelist.
func (w *Whitelist) Rules(ctx context.Context) (ruleTexts []string) {
	return w.OnRules(ctx)
}

// Domains implements the [cbupdate.Whitelist] interface for *Whitelist.
func (w *Whitelist) Domains(ctx context.Context) (domains []string) {
	return w.OnDomains(ctx)
}

// Package converter

// type check
var _ converter.Interface = (*Converter)(nil)

// Converter is a [converter.Interface] for tests.
type Converter struct {
	OnConvert func(
		ctx context.Context,
		rules []string,
		advanced bool,
	) (res *converter.Result, err error)
}

// Convert implements the [converter.Interface] interface for *Converter.
func (c *Converter) Convert(
	ctx context.Context,
	rules []string,
	advanced bool,
) (res *converter.Result, err error) {
	return c.OnConvert(ctx, rules, advanced)
}

// Package debugsvc

// type check
var _ debugsvc.UpdateRequester = (*UpdateRequester)(nil)

// UpdateRequester is a [debugsvc.UpdateRequester] for tests.
type UpdateRequester struct {
	OnRequestUpdate func()
}

// RequestUpdate implements the [debugsvc.UpdateRequester] interface for
// *UpdateRequester.
func (r *UpdateRequester) RequestUpdate() {
	r.OnRequestUpdate()
}

// Package errcoll

// type check
var _ errcoll.Interface = (*ErrorCollector)(nil)

// ErrorCollector is an [errcoll.Interface] for tests.
type ErrorCollector struct {
	OnCollect func(ctx context.Context, err error)
}

// Collect implements the [errcoll.Interface] interface for *ErrorCollector.
func (c *ErrorCollector) Collect(ctx context.Context, err error) {
	c.OnCollect(ctx, err)
}

// NewErrorCollector returns a new *ErrorCollector all methods of which panic.
func NewErrorCollector() (c *ErrorCollector) {
	return &ErrorCollector{
		OnCollect: func(_ context.Context, err error) {
			panic(testutil.UnexpectedCall(err))
		},
	}
}

// Package filtercat

// type check
var _ filtercat.Metrics = (*FilterCategoryMetrics)(nil)

// FilterCategoryMetrics is a [filtercat.Metrics] for tests.
type FilterCategoryMetrics struct {
	OnSetFiltersCount func(ctx context.Context, n int)
}

// SetFiltersCount implements the [filtercat.Metrics] interface for
// *FilterCategoryMetrics.
func (m *FilterCategoryMetrics) SetFiltersCount(ctx context.Context, n int) {
	m.OnSetFiltersCount(ctx, n)
}

// Package notifier

// type check
var _ notifier.Publisher = (*Publisher)(nil)

// Publisher is a [notifier.Publisher] for tests.
type Publisher struct {
	OnPublish func(ctx context.Context, ev cblocker.Event) (err error)
}

// Publish implements the [notifier.Publisher] interface for *Publisher.
func (p *Publisher) Publish(ctx context.Context, ev cblocker.Event) (err error) {
	return p.OnPublish(ctx, ev)
}

// Package rulegroup

// type check
var _ rulegroup.CategoryIndex = (*CategoryIndex)(nil)

// CategoryIndex is a [rulegroup.CategoryIndex] for tests.
type CategoryIndex struct {
	OnFiltersByGroupID func(ctx context.Context, id rulegroup.FilterGroupID) (ids []rulegroup.FilterID)
}

// FiltersByGroupID implements the [rulegroup.CategoryIndex] interface for
// *CategoryIndex.
func (idx *CategoryIndex) FiltersByGroupID(
	ctx context.Context,
	id rulegroup.FilterGroupID,
) (ids []rulegroup.FilterID) {
	return idx.OnFiltersByGroupID(ctx, id)
}

// Package rulesource

// type check
var _ rulesource.Metrics = (*RuleSourceMetrics)(nil)

// RuleSourceMetrics is a [rulesource.Metrics] for tests.
type RuleSourceMetrics struct {
	OnSetRulesCount  func(ctx context.Context, id rulegroup.FilterID, n int)
	OnObserveRefresh func(ctx context.Context, dur time.Duration, err error)
}

// SetRulesCount implements the [rulesource.Metrics] interface for
// *RuleSourceMetrics.
func (m *RuleSourceMetrics) SetRulesCount(ctx context.Context, id rulegroup.FilterID, n int) {
	m.OnSetRulesCount(ctx, id, n)
}

// ObserveRefresh implements the [rulesource.Metrics] interface for
// *RuleSourceMetrics.
func (m *RuleSourceMetrics) ObserveRefresh(ctx context.Context, dur time.Duration, err error) {
	m.OnObserveRefresh(ctx, dur, err)
}
