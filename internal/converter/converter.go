// Package converter contains the interface and implementations of the
// converters of filtering rules into content-blocker documents.
package converter

import (
	"context"
)

// Result is the report of a single conversion.
type Result struct {
	// Converted is the converted content-blocker document.  It may be empty
	// or "[]" if there are no rules to convert.
	Converted string `json:"converted"`

	// AdvancedBlocking is the converted advanced-blocking document.  It is
	// only set in the advanced mode.
	AdvancedBlocking string `json:"advancedBlocking"`

	// TotalConvertedCount is the number of converted rules including the rules
	// over the limit.
	TotalConvertedCount int `json:"totalConvertedCount"`

	// ConvertedCount is the number of rules in Converted.
	ConvertedCount int `json:"convertedCount"`

	// ErrorsCount is the number of rules that couldn't be converted.
	ErrorsCount int `json:"errorsCount"`

	// AdvancedBlockingConvertedCount is the number of rules in
	// AdvancedBlocking.
	AdvancedBlockingConvertedCount int `json:"advancedBlockingConvertedCount"`

	// OverLimit is true if the number of rules exceeds the limit.
	OverLimit bool `json:"overLimit"`
}

// Interface is the converter of filtering rules.
type Interface interface {
	// Convert converts the texts of rules.  If advanced is true, the
	// advanced-blocking document is also produced.  res may be nil if the
	// converter has produced nothing.
	Convert(ctx context.Context, rules []string, advanced bool) (res *Result, err error)
}

// Empty is the [Interface] implementation that never converts anything.
type Empty struct{}

// type check
var _ Interface = Empty{}

// Convert implements the [Interface] interface for Empty.  It always returns
// nil and nil.
func (Empty) Convert(_ context.Context, _ []string, _ bool) (res *Result, err error) {
	return nil, nil
}
