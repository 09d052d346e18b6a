package metrics_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/cbupdater/internal/metrics"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNamespace is the namespace of the metrics for tests.
const testNamespace = "test"

// gatherAndCount is a helper that returns the number of series of the metrics
// with the given names in reg.
func gatherAndCount(tb testing.TB, reg prometheus.Gatherer, names ...string) (n int, err error) {
	tb.Helper()

	mfs, err := reg.Gather()
	if err != nil {
		return 0, err
	}

	for _, mf := range mfs {
		if slices.Contains(names, mf.GetName()) {
			n += len(mf.GetMetric())
		}
	}

	return n, nil
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewUpdate(testNamespace, reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.SetDispatchInfo(ctx, &cblocker.DispatchInfo{
		BundleID:   rulegroup.BundleIDGeneral,
		RulesCount: 42,
		OverLimit:  true,
	})
	m.ObserveConversion(ctx, false, time.Second, errors.Error("test error"))
	m.ObserveUpdate(ctx, &cblocker.UpdateCompleted{
		RulesCount:                 10,
		AdvancedBlockingRulesCount: 2,
		RulesOverLimit:             true,
	}, time.Second, nil)
	m.ObserveUpdate(ctx, nil, 0, nil)

	n, err := gatherAndCount(t, 
		reg,
		"test_update_bundle_rules_total",
		"test_update_runs_total",
		"test_update_conversion_errors_total",
	)
	require.NoError(t, err)

	// One bundle, both skipped and non-skipped runs, and one error mode.
	assert.Equal(t, 4, n)

	_, err = metrics.NewUpdate(testNamespace, reg)
	assert.Error(t, err)
}

func TestRuleSource(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewRuleSource(testNamespace, reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.SetRulesCount(ctx, 2, 100)
	m.SetRulesCount(ctx, rulegroup.FilterIDUser, 1)
	m.ObserveRefresh(ctx, time.Second, errors.Error("test error"))

	n, err := gatherAndCount(t, reg, "test_rulesource_rules_total")
	require.NoError(t, err)

	assert.Equal(t, 2, n)
}

func TestFilterIndex(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewFilterIndex(testNamespace, reg)
	require.NoError(t, err)

	m.SetFiltersCount(context.Background(), 5)

	n, err := gatherAndCount(t, reg, "test_filterindex_filters_total")
	require.NoError(t, err)

	assert.Equal(t, 1, n)
}

func TestSetUpGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	err := metrics.SetUpGauge(testNamespace, reg, "v1.0.0", "", "master", "abc", "go1.25")
	require.NoError(t, err)

	n, err := gatherAndCount(t, reg, "test_app_up")
	require.NoError(t, err)

	assert.Equal(t, 1, n)
}
