// Package metrics contains the Prometheus-based implementations of the metrics
// interfaces of the updater.
package metrics

import (
	"fmt"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the default namespace of the metrics.
const Namespace = "cbupdater"

// Constants with the subsystem names used in the metrics.
const (
	subsystemApplication = "app"
	subsystemFilterIndex = "filterindex"
	subsystemRuleSource  = "rulesource"
	subsystemUpdate      = "update"
)

// SetUpGauge registers the gauge signaling that the updater has been started
// in reg and sets it.
func SetUpGauge(
	namespace string,
	reg prometheus.Registerer,
	version string,
	buildtime string,
	branch string,
	revision string,
	goversion string,
) (err error) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "up",
		Namespace: namespace,
		Subsystem: subsystemApplication,
		Help: `A metric with a constant '1' value labeled by ` +
			`version and goversion from which the program was built.`,
		ConstLabels: prometheus.Labels{
			"version":   version,
			"buildtime": buildtime,
			"branch":    branch,
			"revision":  revision,
			"goversion": goversion,
		},
	})

	err = reg.Register(gauge)
	if err != nil {
		return fmt.Errorf("registering up metric: %w", err)
	}

	gauge.Set(1)

	return nil
}

// SetStatusGauge is a helper function that automatically checks if there's an
// error and sets the gauge to either 1 (success) or 0 (error).
func SetStatusGauge(gauge prometheus.Gauge, err error) {
	if err == nil {
		gauge.Set(1)
	} else {
		gauge.Set(0)
	}
}

// BoolString returns "1" if cond is true and "0" otherwise.
func BoolString(cond bool) (s string) {
	if cond {
		return "1"
	}

	return "0"
}

// boolFloat returns 1 if cond is true and 0 otherwise.
func boolFloat(cond bool) (f float64) {
	if cond {
		return 1
	}

	return 0
}

// registerAll registers the collectors in reg and returns the joined errors.
func registerAll(
	reg prometheus.Registerer,
	collectors container.KeyValues[string, prometheus.Collector],
) (err error) {
	var errs []error
	for _, c := range collectors {
		err = reg.Register(c.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", c.Key, err))
		}
	}

	return errors.Join(errs...)
}
