// Package metrics exports coordinator telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const DefaultNamespace = "foldershare"

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// PrometheusObserver records notification, archive and refresh outcomes.
// A nil observer is valid and records nothing.
type PrometheusObserver struct {
	deliveries      *prometheus.CounterVec
	archiveRequests *prometheus.CounterVec
	archiveBuild    prometheus.Histogram
	refreshItems    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
}

func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	o := &PrometheusObserver{}
	o.deliveries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_deliveries_total",
		Help:      "Thumbnail notifications pushed to live connections.",
	}, []string{"trigger", "outcome"}))
	if err != nil {
		return nil, err
	}
	o.archiveRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_requests_total",
		Help:      "Archive requests by cache outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	o.archiveBuild, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "archive_build_duration_seconds",
		Help:      "Time spent rebuilding folder archives.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}))
	if err != nil {
		return nil, err
	}
	o.refreshItems, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_items_total",
		Help:      "Links re-signed by the refresh job.",
	}, []string{"kind", "outcome"}))
	if err != nil {
		return nil, err
	}
	o.refreshDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Duration of complete refresh runs.",
		Buckets:   prometheus.DefBuckets,
	}))
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (o *PrometheusObserver) RecordDelivery(trigger string, err error) {
	if o == nil {
		return
	}
	o.deliveries.WithLabelValues(trigger, outcome(err)).Inc()
}

func (o *PrometheusObserver) RecordArchiveHit() {
	if o == nil {
		return
	}
	o.archiveRequests.WithLabelValues("hit").Inc()
}

func (o *PrometheusObserver) RecordArchiveRebuild(duration time.Duration, err error) {
	if o == nil {
		return
	}
	if err != nil {
		o.archiveRequests.WithLabelValues("failed").Inc()
		return
	}
	o.archiveRequests.WithLabelValues("rebuild").Inc()
	o.archiveBuild.Observe(duration.Seconds())
}

func (o *PrometheusObserver) RecordRefreshItem(kind string, err error) {
	if o == nil {
		return
	}
	o.refreshItems.WithLabelValues(kind, outcome(err)).Inc()
}

func (o *PrometheusObserver) RecordRefreshRun(duration time.Duration) {
	if o == nil {
		return
	}
	o.refreshDuration.Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return outcomeFailed
	}
	return outcomeOK
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register metric: %w", err)
}
