// Package cblocker contains the common types of the content-blocker dispatch
// pipeline: the dispatch metadata and the events published by the pipeline.
package cblocker

import (
	"slices"

	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
)

// EmptyBlockerJSON is the converted document sent to a bundle when the
// conversion of its rules has failed or produced no rules.  It ignores all
// previous rules and matches nothing.
const EmptyBlockerJSON = `[{"action":{"type":"ignore-previous-rules"},` +
	`"trigger":{"url-filter":"none"}}]`

// EmptyAdvancedJSON is the advanced-blocking document sent when the advanced
// conversion has failed or produced nothing.
const EmptyAdvancedJSON = "[]"

// DispatchInfo is the metadata of a single converted document sent to a
// bundle.
type DispatchInfo struct {
	// BundleID is the identifier of the bundle the document is sent to.
	BundleID rulegroup.BundleID `json:"bundleId"`

	// FilterGroupIDs are the filter groups of the rule group.  It is empty for
	// the advanced-blocking bundle.
	FilterGroupIDs []rulegroup.FilterGroupID `json:"filterGroups,omitempty"`

	// RulesCount is the number of rules the converter has converted.
	RulesCount int `json:"rulesCount"`

	// OverLimit is true if the converter has reported that the rules exceed
	// the limit of the platform.
	OverLimit bool `json:"overlimit"`

	// HasError is true if an error occurred while publishing the document.
	HasError bool `json:"hasError"`
}

// Clone returns a deep clone of info.  info must not be nil.
func (info *DispatchInfo) Clone() (c *DispatchInfo) {
	c = &DispatchInfo{}
	*c = *info
	c.FilterGroupIDs = slices.Clone(info.FilterGroupIDs)

	return c
}

// Event is the closed set of events of the dispatch pipeline.  The only
// implementations are [*DispatchRequired], [*UpdateCompleted], and
// [*ExtensionUpdated].
type Event interface {
	// isEvent is a marker method.
	isEvent()
}

// DispatchRequired is published once per group and once for the
// advanced-blocking bundle on every run of the pipeline.
type DispatchRequired struct {
	// Info is the metadata of the document.  It is never nil.
	Info *DispatchInfo

	// BundleID is the identifier of the bundle the document is sent to.
	BundleID rulegroup.BundleID

	// JSON is the converted document.  It is never empty.
	JSON string
}

// type check
var _ Event = (*DispatchRequired)(nil)

// isEvent implements the [Event] interface for *DispatchRequired.
func (*DispatchRequired) isEvent() {}

// UpdateCompleted is published once after every run of the pipeline.
type UpdateCompleted struct {
	// RulesCount is the number of rules excluding comments and directives.
	RulesCount int `json:"rulesCount"`

	// AdvancedBlockingRulesCount is the number of rules converted by the
	// advanced-blocking conversion.
	AdvancedBlockingRulesCount int `json:"advancedBlockingRulesCount"`

	// RulesOverLimit is true if the conversion of any group has been over the
	// limit.
	RulesOverLimit bool `json:"rulesOverLimit"`
}

// type check
var _ Event = (*UpdateCompleted)(nil)

// isEvent implements the [Event] interface for *UpdateCompleted.
func (*UpdateCompleted) isEvent() {}

// ExtensionUpdated is published by the extension host after it has applied a
// converted document.
type ExtensionUpdated struct {
	// Info is the metadata of the applied document.  It is never nil.
	Info *DispatchInfo
}

// type check
var _ Event = (*ExtensionUpdated)(nil)

// isEvent implements the [Event] interface for *ExtensionUpdated.
func (*ExtensionUpdated) isEvent() {}
