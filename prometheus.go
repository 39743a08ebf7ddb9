// Copyright 2026 The Gamevisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gamevisor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics is a MetricsCollector backed by its own registry.
type PrometheusMetrics struct {
	lines      *prometheus.CounterVec
	rules      *prometheus.CounterVec
	reopens    *prometheus.CounterVec
	operations *prometheus.HistogramVec
	jobs       *prometheus.CounterVec
	running    prometheus.Gauge

	registry *prometheus.Registry
}

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "gamevisor"
	}
	pm := &PrometheusMetrics{registry: prometheus.NewRegistry()}

	pm.lines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_total",
			Help:      "Server log lines evaluated against the rule set",
		},
		[]string{"source"},
	)
	pm.rules = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_fired_total",
			Help:      "Rule actions run, by rule name",
		},
		[]string{"rule"},
	)
	pm.reopens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_reopens_total",
			Help:      "Log files reopened after truncation or rotation",
		},
		[]string{"source"},
	)
	pm.operations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of lifecycle operations",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"operation", "status"},
	)
	pm.jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs",
		},
		[]string{"job", "status"},
	)
	pm.running = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_running",
			Help:      "1 if the server process is running",
		},
	)

	pm.registry.MustRegister(
		pm.lines,
		pm.rules,
		pm.reopens,
		pm.operations,
		pm.jobs,
		pm.running,
	)
	return pm
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (pm *PrometheusMetrics) LineProcessed(source string) {
	pm.lines.WithLabelValues(source).Inc()
}

func (pm *PrometheusMetrics) RuleFired(rule string) {
	pm.rules.WithLabelValues(rule).Inc()
}

func (pm *PrometheusMetrics) LogReopened(source string) {
	pm.reopens.WithLabelValues(source).Inc()
}

func (pm *PrometheusMetrics) OperationCompleted(op Operation, d time.Duration, err error) {
	pm.operations.WithLabelValues(string(op), status(err)).Observe(d.Seconds())
}

func (pm *PrometheusMetrics) JobRun(job string, err error) {
	pm.jobs.WithLabelValues(job, status(err)).Inc()
}

func (pm *PrometheusMetrics) ServerRunning(running bool) {
	if running {
		pm.running.Set(1)
	} else {
		pm.running.Set(0)
	}
}

// Registry is what the /metrics handler serves.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)
