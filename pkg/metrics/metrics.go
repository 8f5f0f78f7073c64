// Package metrics exposes routing counters and topology gauges to Prometheus.
package metrics

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector captures counters and gauges.
type Collector interface {
	IncCounter(name string, labels map[string]string, delta float64)
	SetGauge(name string, labels map[string]string, value float64)
}

// Nop discards everything; it is the default where no registry is configured.
type Nop struct{}

func (Nop) IncCounter(string, map[string]string, float64) {}
func (Nop) SetGauge(string, map[string]string, float64) {}

// Registry is a Collector backed by a prometheus.Registry. Metric vectors
// are created on first use; the label names of that first call are fixed
// for the metric from then on.
type Registry struct {
	reg *prometheus.Registry

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

func NewRegistry() *Registry {
	return &Registry{
		reg:      prometheus.NewRegistry(),
		counters: make(map[string]*prometheus.CounterVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
	}
}

func (r *Registry) IncCounter(name string, labels map[string]string, delta float64) {
	if delta < 0 {
		slog.Warn("negative counter increment dropped", "metric", name, "delta", delta)
		return
	}
	vec, err := r.counterVec(name, labels)
	if err != nil {
		slog.Warn("metric dropped", "metric", name, "error", err)
		return
	}
	c, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		slog.Warn("metric dropped", "metric", name, "error", err)
		return
	}
	c.Add(delta)
}

func (r *Registry) SetGauge(name string, labels map[string]string, value float64) {
	vec, err := r.gaugeVec(name, labels)
	if err != nil {
		slog.Warn("metric dropped", "metric", name, "error", err)
		return
	}
	g, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		slog.Warn("metric dropped", "metric", name, "error", err)
		return
	}
	g.Set(value)
}

func (r *Registry) counterVec(name string, labels map[string]string) (*prometheus.CounterVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if vec, ok := r.counters[name]; ok {
		return vec, nil
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, labelNames(labels))
	// fails when name is taken by a metric of the other type
	if err := r.reg.Register(vec); err != nil {
		return nil, err
	}
	r.counters[name] = vec
	return vec, nil
}

func (r *Registry) gaugeVec(name string, labels map[string]string) (*prometheus.GaugeVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if vec, ok := r.gauges[name]; ok {
		return vec, nil
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, labelNames(labels))
	// fails when name is taken by a metric of the other type
	if err := r.reg.Register(vec); err != nil {
		return nil, err
	}
	r.gauges[name] = vec
	return vec, nil
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Value returns the current value of a counter or gauge series.
func (r *Registry) Value(name string, labels map[string]string) (float64, bool) {
	families, err := r.reg.Gather()
	if err != nil {
		return 0, false
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if len(m.GetLabel()) != len(labels) {
				continue
			}
			match := true
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; !ok || v != lp.GetValue() {
					match = false
					break
				}
			}
			if !match {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue(), true
			}
			return m.GetGauge().GetValue(), true
		}
	}
	return 0, false
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
