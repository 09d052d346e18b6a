package metrics

import (
	"context"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/cbupdater/internal/cbupdate"
	"github.com/AdguardTeam/golibs/container"
	"github.com/prometheus/client_golang/prometheus"
)

// Update is the Prometheus-based implementation of the [cbupdate.Metrics]
// interface.
type Update struct {
	// runsTotal is a counter with the total number of runs of the pipeline
	// labeled by whether the run has been skipped.
	runsTotal *prometheus.CounterVec

	// runDuration is a histogram with the durations of the runs.
	runDuration prometheus.Histogram

	// runStatus is a gauge with the status of the last run.  1 means success.
	runStatus prometheus.Gauge

	// runTime is a gauge with the timestamp of the last run.
	runTime prometheus.Gauge

	// rulesTotal is a gauge with the number of rules of the last run.
	rulesTotal prometheus.Gauge

	// advancedRulesTotal is a gauge with the number of rules converted by the
	// advanced-blocking conversion of the last run.
	advancedRulesTotal prometheus.Gauge

	// overLimit is a gauge that is 1 if any group of the last run has been
	// over the limit.
	overLimit prometheus.Gauge

	// conversionDuration is a histogram with the durations of the converter
	// calls labeled by the conversion mode.
	conversionDuration *prometheus.HistogramVec

	// conversionErrorsTotal is a counter with the total number of converter
	// errors labeled by the conversion mode.
	conversionErrorsTotal *prometheus.CounterVec

	// bundleRules is a gauge with the number of converted rules of the last
	// document labeled by bundle.
	bundleRules *prometheus.GaugeVec

	// bundleOverLimit is a gauge that is 1 if the last document of the bundle
	// has been over the limit.
	bundleOverLimit *prometheus.GaugeVec

	// bundleError is a gauge that is 1 if the last document of the bundle has
	// failed to be published.
	bundleError *prometheus.GaugeVec
}

// NewUpdate registers the pipeline metrics in reg and returns a properly
// initialized *Update.
func NewUpdate(namespace string, reg prometheus.Registerer) (m *Update, err error) {
	const (
		runsTotal             = "runs_total"
		runDuration           = "run_duration_seconds"
		runStatus             = "run_status"
		runTime               = "run_timestamp"
		rulesTotal            = "rules_total"
		advancedRulesTotal    = "advanced_rules_total"
		overLimit             = "over_limit"
		conversionDuration    = "conversion_duration_seconds"
		conversionErrorsTotal = "conversion_errors_total"
		bundleRules           = "bundle_rules_total"
		bundleOverLimit       = "bundle_over_limit"
		bundleError           = "bundle_error"
	)

	m = &Update{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      runsTotal,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "The total number of runs of the update pipeline.",
		}, []string{"skipped"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      runDuration,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "The duration of the runs of the update pipeline.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		runStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      runStatus,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "Status of the last run of the update pipeline. 1 means success.",
		}),
		runTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      runTime,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "Timestamp of the last run of the update pipeline.",
		}),
		rulesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      rulesTotal,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "The number of rules of the last run excluding comments.",
		}),
		advancedRulesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      advancedRulesTotal,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "The number of advanced-blocking rules of the last run.",
		}),
		overLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      overLimit,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "Whether any group of the last run has been over the limit. 1 means yes.",
		}),
		conversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      conversionDuration,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "The duration of the converter calls.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"advanced"}),
		conversionErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      conversionErrorsTotal,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "The total number of the converter errors.",
		}, []string{"advanced"}),
		bundleRules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      bundleRules,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "The number of converted rules of the last document of the bundle.",
		}, []string{"bundle"}),
		bundleOverLimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      bundleOverLimit,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "Whether the last document of the bundle has been over the limit.",
		}, []string{"bundle"}),
		bundleError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      bundleError,
			Namespace: namespace,
			Subsystem: subsystemUpdate,
			Help:      "Whether the last document of the bundle has failed to be published.",
		}, []string{"bundle"}),
	}

	err = registerAll(reg, container.KeyValues[string, prometheus.Collector]{{
		Key:   runsTotal,
		Value: m.runsTotal,
	}, {
		Key:   runDuration,
		Value: m.runDuration,
	}, {
		Key:   runStatus,
		Value: m.runStatus,
	}, {
		Key:   runTime,
		Value: m.runTime,
	}, {
		Key:   rulesTotal,
		Value: m.rulesTotal,
	}, {
		Key:   advancedRulesTotal,
		Value: m.advancedRulesTotal,
	}, {
		Key:   overLimit,
		Value: m.overLimit,
	}, {
		Key:   conversionDuration,
		Value: m.conversionDuration,
	}, {
		Key:   conversionErrorsTotal,
		Value: m.conversionErrorsTotal,
	}, {
		Key:   bundleRules,
		Value: m.bundleRules,
	}, {
		Key:   bundleOverLimit,
		Value: m.bundleOverLimit,
	}, {
		Key:   bundleError,
		Value: m.bundleError,
	}})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// type check
var _ cbupdate.Metrics = (*Update)(nil)

// ObserveConversion implements the [cbupdate.Metrics] interface for *Update.
func (m *Update) ObserveConversion(
	_ context.Context,
	advanced bool,
	dur time.Duration,
	err error,
) {
	mode := BoolString(advanced)
	m.conversionDuration.WithLabelValues(mode).Observe(dur.Seconds())
	if err != nil {
		m.conversionErrorsTotal.WithLabelValues(mode).Inc()
	}
}

// SetDispatchInfo implements the [cbupdate.Metrics] interface for *Update.
func (m *Update) SetDispatchInfo(_ context.Context, info *cblocker.DispatchInfo) {
	bundle := string(info.BundleID)
	m.bundleRules.WithLabelValues(bundle).Set(float64(info.RulesCount))
	m.bundleOverLimit.WithLabelValues(bundle).Set(boolFloat(info.OverLimit))
	m.bundleError.WithLabelValues(bundle).Set(boolFloat(info.HasError))
}

// ObserveUpdate implements the [cbupdate.Metrics] interface for *Update.
func (m *Update) ObserveUpdate(
	_ context.Context,
	ev *cblocker.UpdateCompleted,
	dur time.Duration,
	err error,
) {
	m.runsTotal.WithLabelValues(BoolString(ev == nil)).Inc()
	m.runDuration.Observe(dur.Seconds())
	m.runTime.SetToCurrentTime()
	SetStatusGauge(m.runStatus, err)

	if ev == nil {
		return
	}

	m.rulesTotal.Set(float64(ev.RulesCount))
	m.advancedRulesTotal.Set(float64(ev.AdvancedBlockingRulesCount))
	m.overLimit.Set(boolFloat(ev.RulesOverLimit))
}
