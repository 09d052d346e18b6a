package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/filtercat"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/cbupdater/internal/rulesource"
	"github.com/AdguardTeam/golibs/container"
	"github.com/prometheus/client_golang/prometheus"
)

// RuleSource is the Prometheus-based implementation of the
// [rulesource.Metrics] interface.
type RuleSource struct {
	// rulesTotal is a gauge with the number of rules of a filter list labeled
	// by the filter identifier.
	rulesTotal *prometheus.GaugeVec

	// refreshDuration is a histogram with the durations of the refreshes.
	refreshDuration prometheus.Histogram

	// refreshStatus is a gauge with the status of the last refresh.  1 means
	// success.
	refreshStatus prometheus.Gauge

	// refreshTime is a gauge with the timestamp of the last refresh.
	refreshTime prometheus.Gauge
}

// NewRuleSource registers the rule-source metrics in reg and returns a
// properly initialized *RuleSource.
func NewRuleSource(namespace string, reg prometheus.Registerer) (m *RuleSource, err error) {
	const (
		rulesTotal      = "rules_total"
		refreshDuration = "refresh_duration_seconds"
		refreshStatus   = "refresh_status"
		refreshTime     = "refresh_timestamp"
	)

	m = &RuleSource{
		rulesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      rulesTotal,
			Namespace: namespace,
			Subsystem: subsystemRuleSource,
			Help:      "The number of rules loaded from the filter list.",
		}, []string{"filter"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      refreshDuration,
			Namespace: namespace,
			Subsystem: subsystemRuleSource,
			Help:      "The duration of the refreshes of the filter lists.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		refreshStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      refreshStatus,
			Namespace: namespace,
			Subsystem: subsystemRuleSource,
			Help:      "Status of the last refresh of the filter lists. 1 means success.",
		}),
		refreshTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      refreshTime,
			Namespace: namespace,
			Subsystem: subsystemRuleSource,
			Help:      "Timestamp of the last refresh of the filter lists.",
		}),
	}

	err = registerAll(reg, container.KeyValues[string, prometheus.Collector]{{
		Key:   rulesTotal,
		Value: m.rulesTotal,
	}, {
		Key:   refreshDuration,
		Value: m.refreshDuration,
	}, {
		Key:   refreshStatus,
		Value: m.refreshStatus,
	}, {
		Key:   refreshTime,
		Value: m.refreshTime,
	}})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// type check
var _ rulesource.Metrics = (*RuleSource)(nil)

// SetRulesCount implements the [rulesource.Metrics] interface for *RuleSource.
func (m *RuleSource) SetRulesCount(_ context.Context, id rulegroup.FilterID, n int) {
	m.rulesTotal.WithLabelValues(strconv.Itoa(int(id))).Set(float64(n))
}

// ObserveRefresh implements the [rulesource.Metrics] interface for
// *RuleSource.
func (m *RuleSource) ObserveRefresh(_ context.Context, dur time.Duration, err error) {
	m.refreshDuration.Observe(dur.Seconds())
	m.refreshTime.SetToCurrentTime()
	SetStatusGauge(m.refreshStatus, err)
}

// FilterIndex is the Prometheus-based implementation of the
// [filtercat.Metrics] interface.
type FilterIndex struct {
	// filtersTotal is a gauge with the number of filter lists in the index.
	filtersTotal prometheus.Gauge
}

// NewFilterIndex registers the filter-index metrics in reg and returns a
// properly initialized *FilterIndex.
func NewFilterIndex(namespace string, reg prometheus.Registerer) (m *FilterIndex, err error) {
	m = &FilterIndex{
		filtersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      "filters_total",
			Namespace: namespace,
			Subsystem: subsystemFilterIndex,
			Help:      "The number of filter lists in the filter index.",
		}),
	}

	err = reg.Register(m.filtersTotal)
	if err != nil {
		return nil, fmt.Errorf("registering metrics %q: %w", "filters_total", err)
	}

	return m, nil
}

// type check
var _ filtercat.Metrics = (*FilterIndex)(nil)

// SetFiltersCount implements the [filtercat.Metrics] interface for
// *FilterIndex.
func (m *FilterIndex) SetFiltersCount(_ context.Context, n int) {
	m.filtersTotal.Set(float64(n))
}
