// Package agdtest contains simple mocks for common interfaces and other test
// utilities.
package agdtest

import (
	"reflect"
	"testing"

	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	gocmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

// AssertEqualResults compares two sets of grouped rules and fails the test if
// they aren't equal.  The groups are compared by their keys.
func AssertEqualResults(tb testing.TB, want, got []*rulegroup.Result) (ok bool) {
	tb.Helper()

	exportAll := gocmp.Exporter(func(_ reflect.Type) (ok bool) { return true })

	groupCmp := gocmp.Comparer(func(want, got *rulegroup.Group) (ok bool) {
		if want == nil || got == nil {
			return want == got
		}

		return want.Key == got.Key
	})

	diff := gocmp.Diff(want, got, groupCmp, exportAll)
	if diff == "" {
		return true
	}

	// Use assert.Failf instead of tb.Errorf to get a more consistent error
	// message.
	return assert.Failf(tb, "not equal", "got: %+v\nwant: %+v\ndiff: %s", got, want, diff)
}
