// Package cbupdate contains the debounced pipeline that converts the current
// filtering rules into content-blocker documents and publishes them.
package cbupdate

import (
	"context"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
)

// RuleSource is the source of the currently enabled filtering rules.
type RuleSource interface {
	// Rules returns the current rules of all enabled filter lists.  The
	// returned slice must not be modified.
	Rules(ctx context.Context) (rules []*rulegroup.Rule)
}

// Whitelist is the source of the whitelisted domains.
type Whitelist interface {
	// Rules returns the exception rules for the whitelisted domains.  The
	// returned slice must not be modified.
	Rules(ctx context.Context) (ruleTexts []string)

	// Domains returns the whitelisted domains.
	Domains(ctx context.Context) (domains []string)
}

// Settings is the source of the user settings affecting the pipeline.
type Settings interface {
	// IsFilteringDisabled returns true if filtering is disabled globally, in
	// which case the pipeline doesn't do anything.
	IsFilteringDisabled(ctx context.Context) (ok bool)

	// IsDefaultWhitelistMode returns true if the whitelist contains the
	// domains on which filtering is disabled.  Otherwise, it contains the only
	// domains on which filtering is enabled.
	IsDefaultWhitelistMode(ctx context.Context) (ok bool)
}

// Metrics is an interface for collection of the statistics of the pipeline.
type Metrics interface {
	// ObserveConversion records a single call to the converter.
	ObserveConversion(ctx context.Context, advanced bool, dur time.Duration, err error)

	// SetDispatchInfo records the metadata of the document most recently sent
	// to a bundle.  info must not be nil.
	SetDispatchInfo(ctx context.Context, info *cblocker.DispatchInfo)

	// ObserveUpdate records a finished run of the pipeline.  ev is nil if the
	// run has been skipped.
	ObserveUpdate(ctx context.Context, ev *cblocker.UpdateCompleted, dur time.Duration, err error)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveConversion implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveConversion(_ context.Context, _ bool, _ time.Duration, _ error) {}

// SetDispatchInfo implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetDispatchInfo(_ context.Context, _ *cblocker.DispatchInfo) {}

// ObserveUpdate implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveUpdate(
	_ context.Context,
	_ *cblocker.UpdateCompleted,
	_ time.Duration,
	_ error,
) {
}
