// Package monitoring exposes prediction metrics and the live prediction stream.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the collectors of the prediction service. Each instance owns
// its registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	PredictionsTotal   *prometheus.CounterVec
	PredictionErrors   *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	CacheLookups       *prometheus.CounterVec
	ModelReloads       *prometheus.CounterVec
	StreamClients      prometheus.GaugeFunc
}

func NewMetrics(clientCount func() int) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premiumcat_predictions_total",
				Help: "Predictions served, by predicted category",
			},
			[]string{"category"},
		),
		PredictionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premiumcat_prediction_errors_total",
				Help: "Failed predictions, by error kind",
			},
			[]string{"kind"},
		),
		PredictionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "premiumcat_prediction_duration_seconds",
				Help:    "Time spent deriving features and classifying",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premiumcat_cache_lookups_total",
				Help: "Prediction cache lookups, by result",
			},
			[]string{"result"},
		),
		ModelReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premiumcat_model_reloads_total",
				Help: "Model artifact reload attempts, by result",
			},
			[]string{"result"},
		),
	}
	if clientCount == nil {
		clientCount = func() int { return 0 }
	}
	m.StreamClients = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "premiumcat_stream_clients",
			Help: "Connected prediction stream clients",
		},
		func() float64 { return float64(clientCount()) },
	)

	m.Registry.MustRegister(
		m.PredictionsTotal,
		m.PredictionErrors,
		m.PredictionDuration,
		m.CacheLookups,
		m.ModelReloads,
		m.StreamClients,
		collectors.NewGoCollector(),
	)
	return m
}
