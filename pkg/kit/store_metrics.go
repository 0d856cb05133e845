package kit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const labelStore = "store"

// StoreMetrics records snapshot writes of the file-backed stores.
type StoreMetrics struct {
	reg prometheus.Registerer

	Persist  *prometheus.HistogramVec
	Failures *prometheus.CounterVec
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		reg: reg,
		Persist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "estore_store_persist_duration_seconds",
				Help:    "Time spent writing a full store snapshot",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{labelStore},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estore_store_persist_failures_total",
				Help: "Snapshot writes that failed",
			},
			[]string{labelStore},
		),
	}

	reg.MustRegister(m.Persist, m.Failures)
	return m
}

func (m *StoreMetrics) ObservePersist(store string, took time.Duration, err error) {
	m.Persist.WithLabelValues(store).Observe(took.Seconds())
	if err != nil {
		m.Failures.WithLabelValues(store).Inc()
	}
}

// TrackSize exports the entity count of a store as a gauge.
func (m *StoreMetrics) TrackSize(store string, size func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "estore_store_entities",
			Help:        "Entities currently held by a store",
			ConstLabels: prometheus.Labels{labelStore: store},
		},
		func() float64 { return float64(size()) },
	))
}
