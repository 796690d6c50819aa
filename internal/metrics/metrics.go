// Package metrics wraps rcrowley/go-metrics registries with per-stage
// gauges and counters, and bridges the default registry into Prometheus for
// the Coordinator Facade's /v1/metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gometrics "github.com/rcrowley/go-metrics"
)

// Enabled gates metric collection; disabled in unit tests that don't want
// the default registry polluted across test cases.
var Enabled = true

// NewRegisteredCounter registers (or fetches) a named counter on the
// default registry.
func NewRegisteredCounter(name string) gometrics.Counter {
	if !Enabled {
		return gometrics.NilCounter{}
	}
	return gometrics.GetOrRegisterCounter(name, gometrics.DefaultRegistry)
}

// NewRegisteredGauge registers (or fetches) a named gauge on the default
// registry — used for checkpoint positions, handled-block numbers, and
// per-request-kind counts.
func NewRegisteredGauge(name string) gometrics.Gauge {
	if !Enabled {
		return gometrics.NilGauge{}
	}
	return gometrics.GetOrRegisterGauge(name, gometrics.DefaultRegistry)
}

// NewRegisteredTimer is used for auction duration and RPC round-trip time.
func NewRegisteredTimer(name string) gometrics.Timer {
	if !Enabled {
		return gometrics.NilTimer{}
	}
	return gometrics.GetOrRegisterTimer(name, gometrics.DefaultRegistry)
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return "ciro_" + string(out)
}

// bridgeCollector implements prometheus.Collector by walking the rcrowley
// default registry on every scrape, avoiding duplicate instrumentation call
// sites across the two metric systems.
type bridgeCollector struct{}

func (bridgeCollector) Describe(chan<- *prometheus.Desc) {}

func (bridgeCollector) Collect(ch chan<- prometheus.Metric) {
	gometrics.DefaultRegistry.Each(func(name string, i interface{}) {
		desc := prometheus.NewDesc(sanitize(name), name, nil, nil)
		switch m := i.(type) {
		case gometrics.Counter:
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(m.Count()))
		case gometrics.Gauge:
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(m.Value()))
		case gometrics.Timer:
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, m.Mean())
		}
	})
}

// Handler exposes the rcrowley registry through the Prometheus text
// exposition format for the Coordinator Facade's /v1/metrics endpoint.
func Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(bridgeCollector{})
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
